// Package config decodes .jit/config.toml, the repository-level defaults
// consulted by the Lifecycle Engine and Lease Ledger (SPEC_FULL.md §1a):
// default claim TTL, stale threshold, lock timeout, and a ceiling on
// checker timeouts. Grounded on the teacher's cmd/bd/formula.go, which
// uses github.com/BurntSushi/toml's Encoder/Decoder for its own
// formula-conversion commands — the only TOML usage in the teacher's
// tree, generalized here to a single decoded settings struct instead of
// an ad hoc document conversion.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jit-dev/jit/internal/errkind"
)

// FileName is config.toml's name under local_jit (spec.md §6 file
// layout).
const FileName = "config.toml"

// Config holds the repository-level defaults read from config.toml. Zero
// values are replaced by Defaults() fields that are unset in the file.
type Config struct {
	DefaultClaimTTLSecs   int64  `toml:"default_claim_ttl_secs"`
	StaleThresholdSecs    int64  `toml:"stale_threshold_secs"`
	LockTimeoutSecs       int64  `toml:"lock_timeout_secs"`
	CheckerTimeoutCeilingSecs int64 `toml:"checker_timeout_ceiling_secs"`

	// AgentID and TestMode mirror the two process-wide environment
	// variables spec.md §9 allows (JIT_AGENT_ID, JIT_TEST_MODE),
	// injectable here instead of read from the environment directly so
	// the Lifecycle Engine never touches os.Getenv itself.
	AgentID  string `toml:"agent_id"`
	TestMode bool   `toml:"test_mode"`

	// LogToFile switches the CommandExecutor's logger from stderr to a
	// rotating file under local_jit (internal/logging).
	LogToFile     bool `toml:"log_to_file"`
	LogMaxSizeMB  int  `toml:"log_max_size_mb"`
	LogMaxBackups int  `toml:"log_max_backups"`
	LogMaxAgeDays int  `toml:"log_max_age_days"`
}

// Defaults returns the configuration used when config.toml is absent or
// leaves a field unset.
func Defaults() Config {
	return Config{
		DefaultClaimTTLSecs:      600,
		StaleThresholdSecs:       int64(15 * time.Minute / time.Second),
		LockTimeoutSecs:          5,
		CheckerTimeoutCeilingSecs: 300,
		LogMaxSizeMB:             10,
		LogMaxBackups:            3,
		LogMaxAgeDays:            28,
	}
}

// Load reads localJIT/config.toml, falling back to Defaults() for any
// field the file omits (and for the whole struct if the file is absent).
func Load(localJIT string) (Config, error) {
	cfg := Defaults()
	path := filepath.Join(localJIT, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errkind.Wrap(errkind.IO, err, "read %s", path)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, errkind.Wrap(errkind.Corruption, err, "parse %s", path)
	}
	return cfg, nil
}

// Save writes cfg to localJIT/config.toml.
func Save(localJIT string, cfg Config) error {
	path := filepath.Join(localJIT, FileName)
	if err := os.MkdirAll(localJIT, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create %s", localJIT)
	}
	f, err := os.Create(path)
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "create %s", path)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return errkind.Wrap(errkind.IO, err, "encode %s", path)
	}
	return nil
}

// LockTimeout returns the configured lock-acquisition timeout as a
// time.Duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSecs) * time.Second
}

// StaleThreshold returns the configured indefinite-lease staleness
// threshold as a time.Duration.
func (c Config) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdSecs) * time.Second
}
