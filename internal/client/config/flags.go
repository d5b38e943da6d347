package config

import (
	"flag"
	"os"
	"time"

	"github.com/mbarsukov/passvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   identity API base URL
//	-d string   PostgreSQL DSN for the passwords store
//	-k string   vault encryption passphrase
//	-r string   recovery email redirect URL
//	-i int      verification poll interval in seconds
//	-b string   S3 bucket for vault snapshots
//	-e string   S3 base endpoint
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-r", "-i", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.IdentityBaseURL, "a", cfg.IdentityBaseURL, "identity API base URL")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.VaultKey, "k", cfg.VaultKey, "vault encryption passphrase")
	fs.StringVar(&cfg.RecoveryRedirectURL, "r", cfg.RecoveryRedirectURL, "recovery redirect URL")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "verification poll interval (in seconds)")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket for snapshots")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
}
