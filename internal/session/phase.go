package session

// Phase is the single derived state driving which screen/logic is active.
// Exactly one phase is active at a time; it is a pure function of the latest
// session plus the recovery flag.
type Phase string

const (
	PhaseAnonymous            Phase = "anonymous"
	PhaseAwaitingRecovery     Phase = "awaiting_recovery"
	PhaseAwaitingVerification Phase = "awaiting_verification"
	PhaseAuthenticated        Phase = "authenticated"
)

// Paths pushed onto the navigation history per phase.
const (
	pathLanding      = "/"
	pathLogin        = "/login"
	pathVerification = "/verification"
	pathVault        = "/vault"
)

func pathForPhase(p Phase) string {
	switch p {
	case PhaseAwaitingRecovery:
		return pathLogin
	case PhaseAwaitingVerification:
		return pathVerification
	case PhaseAuthenticated:
		return pathVault
	default:
		return pathLanding
	}
}

// PhaseForPath maps a history path back to the phase it renders, for
// back/forward traversal. Unknown paths map to Anonymous.
func PhaseForPath(path string) Phase {
	switch path {
	case pathLogin:
		return PhaseAwaitingRecovery
	case pathVerification:
		return PhaseAwaitingVerification
	case pathVault:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}
