package goAccounts

import (
	"errors"
	"time"

	"github.com/MrEthical07/goAccounts/password"
)

// Config groups the engine's tunables. Values left zero fall back to the
// defaults below at Build time.
type Config struct {
	Password      PasswordConfig
	Reset         ResetConfig
	Token         TokenConfig
	Challenge     ChallengeConfig
	Cache         CacheConfig
	Notifications NotificationConfig
}

// PasswordConfig controls digest derivation for newly set passwords.
// Historical records keep verifying under their own recorded cost.
type PasswordConfig struct {
	Iterations int
	// MinLength applies to caller-supplied passwords on creation and change.
	MinLength int
}

// ResetConfig controls password reset issuance.
type ResetConfig struct {
	// TTL is how long a temporary reset password stays live.
	TTL time.Duration
	// TemporaryPasswordBytes is the entropy of the generated temporary
	// password before base64 encoding.
	TemporaryPasswordBytes int
}

// TokenConfig controls token minting.
type TokenConfig struct {
	// ModificationTTL bounds signed account-modification tokens. Login
	// tokens deliberately carry no expiry and live until revoked.
	ModificationTTL time.Duration
}

// ChallengeConfig controls the transient security key challenge store.
type ChallengeConfig struct {
	TTL time.Duration
}

// NotificationConfig controls the asynchronous notification dispatcher.
type NotificationConfig struct {
	BufferSize int
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Iterations: password.DefaultIterations,
			MinLength:  8,
		},
		Reset: ResetConfig{
			TTL:                    30 * time.Minute,
			TemporaryPasswordBytes: 24,
		},
		Token: TokenConfig{
			ModificationTTL: time.Hour,
		},
		Challenge: ChallengeConfig{
			TTL: 5 * time.Minute,
		},
		Cache: CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 512,
		},
		Notifications: NotificationConfig{
			BufferSize: 256,
		},
	}
}

func (c *Config) applyDefaults() {
	defaults := defaultConfig()
	if c.Password.Iterations == 0 {
		c.Password.Iterations = defaults.Password.Iterations
	}
	if c.Password.MinLength == 0 {
		c.Password.MinLength = defaults.Password.MinLength
	}
	if c.Reset.TTL == 0 {
		c.Reset.TTL = defaults.Reset.TTL
	}
	if c.Reset.TemporaryPasswordBytes == 0 {
		c.Reset.TemporaryPasswordBytes = defaults.Reset.TemporaryPasswordBytes
	}
	if c.Token.ModificationTTL == 0 {
		c.Token.ModificationTTL = defaults.Token.ModificationTTL
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = defaults.Challenge.TTL
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = defaults.Cache.TTL
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
	}
	if c.Notifications.BufferSize == 0 {
		c.Notifications.BufferSize = defaults.Notifications.BufferSize
	}
}

func (c *Config) validate() error {
	if c.Password.Iterations < 0 {
		return errors.New("password iterations must be positive")
	}
	if c.Reset.TTL < 0 {
		return errors.New("reset TTL must be positive")
	}
	if c.Token.ModificationTTL < 0 {
		return errors.New("modification token TTL must be positive")
	}
	if c.Challenge.TTL < 0 {
		return errors.New("challenge TTL must be positive")
	}
	return nil
}
