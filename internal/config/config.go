package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"github.com/kubev2v/prio-scheduler/internal/util"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const (
	ServerModeDev  = "dev"
	ServerModeProd = "prod"
)

var logFormats = []string{"console", "json"}

type Configuration struct {
	Server    Server
	Scheduler Scheduler
	Store     Store
	Auth      Authentication
	LogFormat string `default:"console"`
	LogLevel  string `default:"info"`
}

type Server struct {
	ServerMode string `default:"dev"`
	HTTPPort   int    `default:"8000"`
}

type Scheduler struct {
	// DefaultPriority applies to job requests that name no priority.
	DefaultPriority string        `default:"normal"`
	ShutdownTimeout time.Duration `default:"10s"`
}

type Store struct {
	// DataFolder holds the job journal. Empty keeps it in memory.
	DataFolder string
}

type Authentication struct {
	Enabled    bool
	SecretFile string
}

// NewConfigurationWithDefaults returns a configuration with every default applied.
func NewConfigurationWithDefaults() *Configuration {
	c := &Configuration{}
	if err := defaults.Set(c); err != nil {
		// only fails on malformed tags
		panic(err)
	}
	return c
}

func (c *Configuration) Validate() error {
	switch c.Server.ServerMode {
	case ServerModeDev, ServerModeProd:
	default:
		return fmt.Errorf("invalid server mode %q: must be %q or %q", c.Server.ServerMode, ServerModeDev, ServerModeProd)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if _, err := scheduler.ParsePriority(c.Scheduler.DefaultPriority); err != nil {
		return fmt.Errorf("invalid default priority: %w", err)
	}
	if c.Scheduler.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if !util.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.Auth.Enabled && c.Auth.SecretFile == "" {
		return fmt.Errorf("authentication enabled without a secret file")
	}
	return nil
}

// DefaultPriority returns the parsed default priority. Call Validate first.
func (c *Configuration) DefaultPriority() scheduler.Priority {
	p, err := scheduler.ParsePriority(c.Scheduler.DefaultPriority)
	if err != nil {
		return scheduler.Normal
	}
	return p
}

// DebugMap returns the values safe to log.
func (c *Configuration) DebugMap() map[string]any {
	return map[string]any{
		"server_mode":      c.Server.ServerMode,
		"http_port":        c.Server.HTTPPort,
		"default_priority": c.Scheduler.DefaultPriority,
		"shutdown_timeout": c.Scheduler.ShutdownTimeout.String(),
		"data_folder":      c.Store.DataFolder,
		"auth_enabled":     c.Auth.Enabled,
		"log_format":       c.LogFormat,
		"log_level":        c.LogLevel,
	}
}
