package navigation

import "sync"

// Memory is an in-process Navigator backed by a history stack. The CLI seeds
// it from pasted links; tests drive it directly.
type Memory struct {
	mu      sync.Mutex
	stack   []Location
	pos     int
	nextSub int
	popSubs map[int]func(Location)
}

// NewMemory returns a Memory positioned at the given initial location.
func NewMemory(initial Location) *Memory {
	return &Memory{
		stack:   []Location{initial},
		popSubs: make(map[int]func(Location)),
	}
}

func (m *Memory) Current() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack[m.pos]
}

// Replace rewrites the current entry in place. No popstate handlers fire.
func (m *Memory) Replace(loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack[m.pos] = loc
}

// Push appends a new entry, truncating any forward history.
func (m *Memory) Push(loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack[:m.pos+1], loc)
	m.pos = len(m.stack) - 1
}

// ParseAndReplace parses a raw URL and installs it as the current location,
// e.g. when the user opens a link delivered out of band.
func (m *Memory) ParseAndReplace(raw string) (Location, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return Location{}, err
	}
	m.Replace(loc)
	return loc, nil
}

func (m *Memory) OnPopState(handler func(Location)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.popSubs[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.popSubs, id)
		m.mu.Unlock()
	}
}

// Back moves one entry backwards, firing popstate handlers. It reports
// whether a move happened.
func (m *Memory) Back() bool {
	m.mu.Lock()
	if m.pos == 0 {
		m.mu.Unlock()
		return false
	}
	m.pos--
	loc := m.stack[m.pos]
	subs := m.snapshotSubs()
	m.mu.Unlock()

	for _, h := range subs {
		h(loc)
	}
	return true
}

// Forward moves one entry forwards, firing popstate handlers.
func (m *Memory) Forward() bool {
	m.mu.Lock()
	if m.pos >= len(m.stack)-1 {
		m.mu.Unlock()
		return false
	}
	m.pos++
	loc := m.stack[m.pos]
	subs := m.snapshotSubs()
	m.mu.Unlock()

	for _, h := range subs {
		h(loc)
	}
	return true
}

func (m *Memory) snapshotSubs() []func(Location) {
	subs := make([]func(Location), 0, len(m.popSubs))
	for _, h := range m.popSubs {
		subs = append(subs, h)
	}
	return subs
}
