package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "data/lifecycle.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Minute, cfg.Policy.ReloadInterval)
	assert.Equal(t, ChannelLog, cfg.Notification.Channel)
	assert.Equal(t, "chat_id", cfg.Lark.ReceiveIDType)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_RepositoryConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "configs/policy.yaml", cfg.Policy.Path)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, cfg.Policy.ReloadInterval, cc.Policy.ReloadInterval)
	assert.Equal(t, cfg.Notification.Channel, cc.Notification.Channel)
	assert.Equal(t, cfg.Server.Port, cc.Server.Port)
	assert.NoError(t, cc.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LIFECYCLE_SERVER_PORT", "7070")
	t.Setenv("LIFECYCLE_NOTIFICATION_CHANNEL", "lark")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")
	t.Setenv("LARK_RECEIVE_ID", "oc_123")

	cfg, err := Load(writeConfig(t, "notification:\n  channel: log\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, ChannelLark, cfg.Notification.Channel)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
	assert.Equal(t, "secret", cfg.Lark.AppSecret)
	assert.Equal(t, "oc_123", cfg.Lark.ReceiveID)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeConfig(t, "notification:\n  channel: lark\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lark.app_id")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:       ServerConfig{Port: 8080},
			Database:     DatabaseConfig{Path: "x.db"},
			Policy:       PolicyConfig{Path: "policy.yaml"},
			Notification: NotificationConfig{Channel: ChannelLog},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"no policy", func(c *Config) { c.Policy.Path = "" }, "policy.path"},
		{"negative reload", func(c *Config) { c.Policy.ReloadInterval = -time.Second }, "reload_interval"},
		{"unknown channel", func(c *Config) { c.Notification.Channel = "email" }, "notification.channel"},
		{"lark without receiver", func(c *Config) {
			c.Notification.Channel = ChannelLark
			c.Lark = LarkConfig{AppID: "a", AppSecret: "b"}
		}, "lark.receive_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
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
