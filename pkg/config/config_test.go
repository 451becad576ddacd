package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LAWYER_ID", "lawyer-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lawyer-1", cfg.Portal.LawyerID)
	assert.Equal(t, StoreFirestore, cfg.Portal.DocStore)
	assert.False(t, cfg.Portal.PersistLawyerRead)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoad_ReadsOverrides(t *testing.T) {
	t.Setenv("LAWYER_ID", "lawyer-1")
	t.Setenv("DOC_STORE", "memory")
	t.Setenv("PERSIST_LAWYER_READ", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("AI_RATE_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Portal.DocStore)
	assert.True(t, cfg.Portal.PersistLawyerRead)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Environment: "development"},
		Portal:    PortalConfig{LawyerID: "lawyer-1", DocStore: StoreMemory},
		RateLimit: RateLimitConfig{Requests: 10, Window: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing lawyer", func(c *Config) { c.Portal.LawyerID = "" }, "LAWYER_ID"},
		{"unknown store", func(c *Config) { c.Portal.DocStore = "cassandra" }, "DOC_STORE"},
		{"weak secret in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Portal.DocStore = StoreMongo
			c.JWT.Secret = "short"
		}, "JWT_SECRET"},
		{"memory store in production", func(c *Config) {
			c.Server.Environment = "production"
			c.JWT.Secret = "0123456789abcdef0123456789abcdef"
		}, "DOC_STORE=memory"},
		{"push without project", func(c *Config) { c.Push.Enabled = true }, "FIREBASE_PROJECT_ID"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, "AI_RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
