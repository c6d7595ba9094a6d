package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a transport-agnostic action engine",
	Long: `Arbor dispatches named actions over HTTP, WebSocket, task queues, and
this CLI, with shared sessions, pub/sub, and fan-out task coordination.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("redis", "", "Redis address; selects the redis backend")
	rootCmd.PersistentFlags().Bool("memory", false, "Force the in-memory backend")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
}

// loadConfig layers the global flags over file and environment config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
		cfg.Backend = "redis"
		cfg.Redis.Address = addr
	}
	if memory, _ := cmd.Flags().GetBool("memory"); memory {
		cfg.Backend = "memory"
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the configured engine with the built-in actions
// registered. The cleanup function must run before the command exits.
func setup(cmd *cobra.Command, extra ...arbor.Option) (*config.Config, *arbor.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	engine, cleanup, err := cli.BuildEngine(cfg, cli.BuildLogger(cfg), extra...)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := engine.Register(Builtins(engine, cfg)...); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return cfg, engine, cleanup, nil
}
