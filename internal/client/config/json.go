package config

import (
	"encoding/json"
	"os"

	"github.com/mbarsukov/passvault/internal/flagx"
	"github.com/mbarsukov/passvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "2s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	IdentityBaseURL     string         `json:"identity_base_url"`
	IdentityAnonKey     string         `json:"identity_anon_key"`
	DatabaseDSN         string         `json:"database_dsn"`
	VaultKey            string         `json:"vault_key"`
	RecoveryRedirectURL string         `json:"recovery_redirect_url"`
	PollInterval        timex.Duration `json:"poll_interval"`
	CompleteDelay       timex.Duration `json:"complete_delay"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
}

// parseJson overlays Config with values loaded from a JSON file resolved via
// the -c/-config flags. Missing file path means no overlay. Read or
// unmarshal errors panic (caller may recover).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.IdentityBaseURL != "" {
		cfg.IdentityBaseURL = jc.IdentityBaseURL
	}
	if jc.IdentityAnonKey != "" {
		cfg.IdentityAnonKey = jc.IdentityAnonKey
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.VaultKey != "" {
		cfg.VaultKey = jc.VaultKey
	}
	if jc.RecoveryRedirectURL != "" {
		cfg.RecoveryRedirectURL = jc.RecoveryRedirectURL
	}
	if jc.PollInterval.Duration != 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.CompleteDelay.Duration != 0 {
		cfg.CompleteDelay = jc.CompleteDelay.Duration
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
}
