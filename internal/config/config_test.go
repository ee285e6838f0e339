package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.Feed.Port)
	assert.Equal(t, 8082, cfg.Analytics.Port)
	assert.Equal(t, "ledger_events", cfg.Redis.Channel)
	assert.Equal(t, int64(5), cfg.Auction.MinIncrementPct)
	assert.Equal(t, int64(2), cfg.Auction.FeePct)
	assert.Equal(t, 10*time.Minute, cfg.Auction.ExtensionWindow)
	assert.Equal(t, 10*time.Minute, cfg.Auction.InitialDuration)
	assert.Equal(t, "@every 5s", cfg.Closer.Schedule)
	assert.True(t, cfg.Closer.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Instance.LockTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_OWNER", "owner-1")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUCTION_EXTENSION_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "owner-1", cfg.Auction.Owner)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Auction.ExtensionWindow)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	content := `
auction:
  owner: alice
  fee_pct: 3
  initial_duration: 1h
auth:
  jwt_secret: from-file
closer:
  auto_settle: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Auction.Owner)
	assert.Equal(t, int64(3), cfg.Auction.FeePct)
	assert.Equal(t, int64(5), cfg.Auction.MinIncrementPct)
	assert.Equal(t, time.Hour, cfg.Auction.InitialDuration)
	assert.True(t, cfg.Closer.AutoSettle)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auction: AuctionConfig{
				Owner:           "owner",
				MinIncrementPct: 5,
				FeePct:          2,
				ExtensionWindow: time.Minute,
				InitialDuration: time.Minute,
			},
			Auth: AuthConfig{JWTSecret: "secret"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"missing owner":      func(c *Config) { c.Auction.Owner = "" },
		"missing secret":     func(c *Config) { c.Auth.JWTSecret = "" },
		"negative increment": func(c *Config) { c.Auction.MinIncrementPct = -1 },
		"increment over 100": func(c *Config) { c.Auction.MinIncrementPct = 101 },
		"fee above 100":      func(c *Config) { c.Auction.FeePct = 101 },
		"zero window":        func(c *Config) { c.Auction.ExtensionWindow = 0 },
		"zero duration":      func(c *Config) { c.Auction.InitialDuration = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
