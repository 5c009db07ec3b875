// Package cmd implements the command-line interface for jobwatch.
// It provides the root command and subcommands for watching a job
// posting source and managing the snapshot store.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Speed-Jobs/jobwatch/cmd/check"
	"github.com/Speed-Jobs/jobwatch/cmd/seen"
	"github.com/Speed-Jobs/jobwatch/cmd/watch"
	"github.com/Speed-Jobs/jobwatch/internal/config"
	"github.com/Speed-Jobs/jobwatch/internal/watcher"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands.
	Debug bool

	// rootCmd represents the root command for the jobwatch CLI.
	rootCmd = &cobra.Command{
		Use:   "jobwatch",
		Short: "A job posting change detector",
		Long: `jobwatch watches a job posting source, detects postings appearing for
the first time and announces them through UI and OS-level notification
sinks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get the config path and debug flag
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

// init initializes the root command and its subcommands.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("jobwatch version %s\n", Version)
		},
	})

	rootCmd.AddCommand(watch.Command())
	rootCmd.AddCommand(check.Command())
	rootCmd.AddCommand(seen.Command())
}

// initConfig reads in the config file and environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Environment variables take precedence over defaults.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional; defaults and environment cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindFlags(); err != nil {
		return err
	}
	if err := bindEnvVars(); err != nil {
		return err
	}

	setupDevelopmentLogging()
	return nil
}

// bindFlags binds command-line flags to viper.
func bindFlags() error {
	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	return nil
}

// bindEnvVars maps well-known environment variables to config keys.
func bindEnvVars() error {
	bindings := map[string][]string{
		"app.environment":      {"APP_ENV"},
		"app.debug":            {"APP_DEBUG"},
		"logger.level":         {"LOG_LEVEL"},
		"logger.encoding":      {"LOG_FORMAT"},
		"watch.source_url":     {"JOBWATCH_SOURCE_URL"},
		"watch.interval":       {"JOBWATCH_INTERVAL"},
		"watch.cron":           {"JOBWATCH_CRON"},
		"store.backend":        {"JOBWATCH_STORE_BACKEND"},
		"store.path":           {"JOBWATCH_STORE_PATH"},
		"store.redis.addr":     {"REDIS_ADDR", "REDIS_URL"},
		"store.redis.password": {"REDIS_PASSWORD"},
		"notify.channel":       {"JOBWATCH_ALERT_CHANNEL"},
		"server.address":       {"JOBWATCH_SERVER_ADDRESS"},
	}
	for key, envs := range bindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setupDevelopmentLogging configures logging based on environment and
// the debug flag.
func setupDevelopmentLogging() {
	debugFlag := Debug || viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	if debugFlag {
		viper.Set("logger.level", "debug")
	}
	if isDev {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}

	Debug = debugFlag
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "jobwatch",
		"version":     Version,
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"development": false,
	})

	viper.SetDefault("watch", map[string]any{
		"interval":      watcher.DefaultInterval.String(),
		"initial_delay": watcher.DefaultInitialDelay.String(),
		"fetch_timeout": "30s",
	})

	viper.SetDefault("store", map[string]any{
		"backend": config.BackendFile,
		"path":    "jobwatch.snapshot.json",
		"redis": map[string]any{
			"addr":       "",
			"db":         0,
			"key_prefix": "jobwatch",
		},
	})

	viper.SetDefault("notify", map[string]any{
		"expiry":     "10s",
		"os_enabled": true,
	})

	viper.SetDefault("server", map[string]any{
		"enabled": false,
		"address": ":8080",
	})
}
