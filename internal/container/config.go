// Package container provides dependency injection and lifecycle management
// for the document lifecycle service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Policy       PolicyConfig
	Notification NotificationConfig
	Lark         LarkConfig
	Server       ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on the SQLite write lock
	BusyTimeout time.Duration
}

// PolicyConfig holds the capability policy file and its reload cadence.
// A zero ReloadInterval loads the file once.
type PolicyConfig struct {
	Path           string
	ReloadInterval time.Duration
}

// NotificationConfig selects the notification channel.
type NotificationConfig struct {
	// Channel is "log" or "lark"
	Channel string

	// HandlerTimeout bounds each asynchronous event handler
	HandlerTimeout time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ReceiveID     string
	APITimeout    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/lifecycle.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Policy: PolicyConfig{
			Path:           "configs/policy.yaml",
			ReloadInterval: time.Minute,
		},
		Notification: NotificationConfig{
			Channel:        "log",
			HandlerTimeout: 10 * time.Second,
		},
		Lark: LarkConfig{
			ReceiveIDType: "chat_id",
			APITimeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Policy.Path == "" {
		return fmt.Errorf("policy.path is required")
	}

	switch c.Notification.Channel {
	case "log":
	case "lark":
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark credentials are required for the lark channel")
		}
		if c.Lark.ReceiveID == "" {
			return fmt.Errorf("lark.receive_id is required for the lark channel")
		}
	default:
		return fmt.Errorf("unknown notification channel %q", c.Notification.Channel)
	}

	return nil
}
