package otcauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"code too short", func(c *Config) { c.Code.Length = 3 }},
		{"code too long", func(c *Config) { c.Code.Length = 11 }},
		{"zero code TTL", func(c *Config) { c.Code.TTL = 0 }},
		{"zero attempts", func(c *Config) { c.Code.MaxAttempts = 0 }},
		{"negative code retention", func(c *Config) { c.Code.Retention = -time.Hour }},
		{"zero rate limit budget", func(c *Config) { c.RateLimit.MaxRequests = 0 }},
		{"zero rate limit window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero session cap", func(c *Config) { c.Session.MaxPerUser = 0 }},
		{"zero session TTL", func(c *Config) { c.Session.TTL = 0 }},
		{"negative session retention", func(c *Config) { c.Session.Retention = -time.Hour }},
		{"zero access TTL", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"access outlives refresh", func(c *Config) { c.Token.AccessTTL = c.Token.RefreshTTL }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCloneConfigDetachesSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")

	clone := cloneConfig(cfg)
	clone.Token.AccessSecret[0] = 'X'

	assert.EqualValues(t, 't', cfg.Token.AccessSecret[0])
}
