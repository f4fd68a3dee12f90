package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/prio-scheduler/internal/config"
)

const envPrefix = "PRIOSCHED"

func newRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "prioschedd",
		Short:         "Priority-preemptive job scheduler daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := config.NewConfigurationWithDefaults()
	flags := root.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-format", defaults.LogFormat, "Log format: console or json")
	flags.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")

	root.AddCommand(
		newServeCommand(v),
		newReplayCommand(v),
		newTokenCommand(v),
		newJobsCommand(v),
	)
	return root
}

// setAllConfig layers flags, PRIOSCHED_* env vars and the optional config file
// into v. Keys are flag names.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	c := v.GetString("config")
	if c == "" {
		return nil
	}

	v.SetConfigFile(c)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading configuration file '%s': %w", c, err)
	}

	validKeys := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validKeys[f.Name] = true
	})
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			return fmt.Errorf("invalid option in configuration file: %v", key)
		}
	}
	return nil
}

// loadConfiguration builds and validates the configuration from v.
func loadConfiguration(v *viper.Viper) (*config.Configuration, error) {
	cfg := config.NewConfigurationWithDefaults()
	if v.IsSet("log-format") {
		cfg.LogFormat = v.GetString("log-format")
	}
	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("server-mode") {
		cfg.Server.ServerMode = v.GetString("server-mode")
	}
	if v.IsSet("http-port") {
		cfg.Server.HTTPPort = v.GetInt("http-port")
	}
	if v.IsSet("default-priority") {
		cfg.Scheduler.DefaultPriority = v.GetString("default-priority")
	}
	if v.IsSet("shutdown-timeout") {
		cfg.Scheduler.ShutdownTimeout = v.GetDuration("shutdown-timeout")
	}
	if v.IsSet("data-folder") {
		cfg.Store.DataFolder = v.GetString("data-folder")
	}
	if v.IsSet("auth-enabled") {
		cfg.Auth.Enabled = v.GetBool("auth-enabled")
	}
	if v.IsSet("auth-secret-file") {
		cfg.Auth.SecretFile = v.GetString("auth-secret-file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the zap global.
func newLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
