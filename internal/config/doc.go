// Package config defines the configuration structure for prioschedd.
//
// Defaults come from struct tags applied with github.com/creasty/defaults.
// The command layer overlays cobra flags, PRIOSCHED_* environment variables and
// an optional config file through viper, then calls Validate.
//
// # Configuration Structure
//
//	Configuration
//	├── Server         - HTTP server settings
//	├── Scheduler      - Job defaults and shutdown
//	├── Store          - Job journal location
//	├── Auth           - Bearer token authentication
//	├── LogFormat      - Logging format
//	└── LogLevel       - Logging verbosity
//
// # Server Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ ServerMode       │ "dev"   │ Server mode: "prod" or "dev"           │
//	│ HTTPPort         │ 8000    │ HTTP server listen port                │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Scheduler Configuration
//
//	┌──────────────────┬──────────┬───────────────────────────────────────┐
//	│ Field            │ Default  │ Description                           │
//	├──────────────────┼──────────┼───────────────────────────────────────┤
//	│ DefaultPriority  │ "normal" │ Priority of requests naming none      │
//	│ ShutdownTimeout  │ 10s      │ Grace period for server shutdown      │
//	└──────────────────┴──────────┴───────────────────────────────────────┘
//
// # Store Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ DataFolder       │ ""      │ DuckDB folder; empty means in memory   │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Authentication Configuration
//
//	┌─────────────┬─────────┬────────────────────────────────────────────┐
//	│ Field       │ Default │ Description                                │
//	├─────────────┼─────────┼────────────────────────────────────────────┤
//	│ Enabled     │ false   │ Require HS256 bearer tokens on /api/v1     │
//	│ SecretFile  │ ""      │ File holding the HMAC secret               │
//	└─────────────┴─────────┴────────────────────────────────────────────┘
//
// # Debug Logging
//
// DebugMap returns the loggable values. The secret itself is never part of
// the configuration, only the path to it:
//
//	zap.S().Infow("configuration loaded", "config", cfg.DebugMap())
package config
