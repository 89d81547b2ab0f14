package logingate

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultUserLockThreshold is the failure count at which an account locks.
	DefaultUserLockThreshold = 3
	// DefaultIPBanThreshold is the failure count at which an address is banned.
	DefaultIPBanThreshold = 10
)

// Config tunes the engine. Configure during initialization and treat as
// immutable afterwards.
type Config struct {
	// UserLockThreshold locks an account once its failure counter reaches
	// this value.
	UserLockThreshold int
	// IPBanThreshold bans a source address once its failure counter reaches
	// this value.
	IPBanThreshold int
	// CounterMaxRetries caps the optimistic-concurrency retry loop on
	// counter updates. Zero selects the counter package default.
	CounterMaxRetries int
	// CredentialPrefix namespaces credential keys on the shared Redis
	// client. Empty selects the credential package default.
	CredentialPrefix string
	// Audit configures the async attempt mirror. The durable audit log is
	// always written regardless of this setting.
	Audit AuditConfig
}

// AuditConfig tunes the async dispatcher that mirrors attempts to an
// [AuditSink].
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops mirrored events instead of blocking the login path
	// when the buffer is full. Dropped counts are observable via
	// [Engine.AuditDropped].
	DropIfFull bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		UserLockThreshold: DefaultUserLockThreshold,
		IPBanThreshold:    DefaultIPBanThreshold,
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Environment variables read by [ConfigFromEnv].
const (
	EnvUserLockThreshold = "LOGINGATE_USER_LOCK_THRESHOLD"
	EnvIPBanThreshold    = "LOGINGATE_IP_BAN_THRESHOLD"
)

// ConfigFromEnv returns [DefaultConfig] with thresholds overridden from the
// environment where set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if raw := os.Getenv(EnvUserLockThreshold); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", EnvUserLockThreshold, err)
		}
		cfg.UserLockThreshold = value
	}
	if raw := os.Getenv(EnvIPBanThreshold); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", EnvIPBanThreshold, err)
		}
		cfg.IPBanThreshold = value
	}

	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.UserLockThreshold < 1 {
		return fmt.Errorf("user lock threshold must be at least 1, got %d", c.UserLockThreshold)
	}
	if c.IPBanThreshold < 1 {
		return fmt.Errorf("ip ban threshold must be at least 1, got %d", c.IPBanThreshold)
	}
	if c.CounterMaxRetries < 0 {
		return fmt.Errorf("counter max retries must not be negative, got %d", c.CounterMaxRetries)
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit buffer size must not be negative, got %d", c.Audit.BufferSize)
	}
	return nil
}
