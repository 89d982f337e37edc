package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tournament.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.False(t, cfg.SlackEnabled())
	assert.False(t, cfg.SlackLoginEnabled())
	assert.False(t, cfg.DevActorHeader)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("NOTIFY_TIMEOUT", "250ms")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_CHANNEL_ID", "C123")
	t.Setenv("SLACK_CLIENT_ID", "client")
	t.Setenv("SLACK_CLIENT_SECRET", "secret")
	t.Setenv("SLACK_CALLBACK_URL", "http://localhost:9090/auth/slack/callback")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ALLOWED_ORIGINS", "https://brackets.example,https://admin.example")
	t.Setenv("DEV_ACTOR_HEADER", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyTimeout)
	assert.True(t, cfg.SlackEnabled())
	assert.Equal(t, "C123", cfg.SlackChannelID)
	assert.True(t, cfg.SlackLoginEnabled())
	assert.True(t, cfg.DevActorHeader)
	assert.Equal(t, []string{"https://brackets.example", "https://admin.example"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "slack without channel", env: map[string]string{"SLACK_BOT_TOKEN": "xoxb-test"}},
		{name: "zero notify timeout", env: map[string]string{"NOTIFY_TIMEOUT": "0s"}},
		{name: "slack login without secret", env: map[string]string{
			"SLACK_CLIENT_ID": "client", "SLACK_CALLBACK_URL": "http://localhost/cb", "SESSION_SECRET": "0123456789abcdef0123456789abcdef",
		}},
		{name: "slack login with short session secret", env: map[string]string{
			"SLACK_CLIENT_ID": "client", "SLACK_CLIENT_SECRET": "secret", "SLACK_CALLBACK_URL": "http://localhost/cb", "SESSION_SECRET": "short",
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
