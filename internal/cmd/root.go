// Package cmd implements the filetrack command line interface.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/softcask/filetrack/internal/config"
	"github.com/softcask/filetrack/internal/event"
	"github.com/softcask/filetrack/internal/logging"
	"github.com/softcask/filetrack/internal/registry"
	"github.com/softcask/filetrack/internal/track"
)

var rootCmd = &cobra.Command{
	Use:   "filetrack",
	Short: "File handle lifecycle tracking and leak detection",
	Long: `Filetrack intercepts file open/reopen/close/delete operations and keeps
an in-memory registry correlating every live handle with its provenance,
so leaks, double closes, and use-after-close can be diagnosed at any
point in a program's life, including at shutdown.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/filetrack/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/filetrack")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FILETRACK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FILETRACK_LOGGING_LEVEL for logging.level
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// stack is the wired-together tracking pipeline shared by the subcommands.
type stack struct {
	cfg     *config.Config
	log     *logging.Logger
	bus     *event.Bus
	reg     *registry.Registry
	tracker *track.Tracker
}

// newStack builds the registry, tracker, bus, and logger from configuration.
func newStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	bus := event.NewBus()
	reg := registry.New(
		registry.WithLogger(log),
		registry.WithBus(bus),
		registry.WithCapacity(cfg.Registry.StoreCapacity),
		registry.WithTrials(cfg.Registry.StoreTrials),
	)
	tracker := track.NewTracker(reg,
		track.WithLogger(log),
		track.WithNameLenMax(cfg.Tracker.NameLenMax),
	)

	return &stack{cfg: cfg, log: log, bus: bus, reg: reg, tracker: tracker}, nil
}

// close flushes the logger.
func (s *stack) close() {
	_ = s.log.Close()
}
