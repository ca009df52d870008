package otcauth

import (
	"errors"
	"time"

	"github.com/kasali/otcauth/session"
	"github.com/kasali/otcauth/token"
)

// Config is the full engine configuration. Zero values are filled from
// [DefaultConfig] by the [Builder]; instances are treated as immutable
// after Build.
type Config struct {
	Code      CodeConfig
	RateLimit RateLimitConfig
	Token     token.Config
	Session   session.Config
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig tunes one-time-code issuance and verification.
type CodeConfig struct {
	// Length is the number of digits in a generated code.
	Length int
	// TTL is how long an issued code stays verifiable.
	TTL time.Duration
	// MaxAttempts is the wrong-submission budget per code record.
	MaxAttempts int
	// Retention is how long used/expired rows are kept before the
	// maintenance purge removes them.
	Retention time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig bounds code requests per contact within a fixed window.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultConfig returns the configuration the engine ships with: 6-digit
// codes valid for 10 minutes with 3 attempts, 3 code requests per hour per
// contact, 15-minute access tokens, 7-day refresh tokens, and a cap of 5
// active sessions per user.
func DefaultConfig() Config {
	return Config{
		Code: CodeConfig{
			Length:      6,
			TTL:         10 * time.Minute,
			MaxAttempts: 3,
			Retention:   24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 3,
			Window:      time.Hour,
		},
		Token: token.Config{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "otcauth",
			Leeway:     30 * time.Second,
		},
		Session: session.Config{
			MaxPerUser: 5,
			TTL:        7 * 24 * time.Hour,
			Retention:  30 * 24 * time.Hour,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
// Token secrets are checked by token.NewService during Build.
func (c Config) Validate() error {
	if c.Code.Length < 4 || c.Code.Length > 10 {
		return errors.New("code length must be between 4 and 10 digits")
	}
	if c.Code.TTL <= 0 {
		return errors.New("code TTL must be positive")
	}
	if c.Code.MaxAttempts <= 0 {
		return errors.New("code max attempts must be positive")
	}
	if c.Code.Retention < 0 {
		return errors.New("code retention must not be negative")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return errors.New("rate limit max requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Session.MaxPerUser <= 0 {
		return errors.New("session cap must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.Retention < 0 {
		return errors.New("session retention must not be negative")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
