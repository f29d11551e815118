package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/recoverd/pkg/config"
	"github.com/cuemby/recoverd/pkg/log"
	"github.com/cuemby/recoverd/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recoverd",
	Short: "recoverd - cluster recovery coordinator",
	Long: `recoverd coordinates recovery for a clustered shared-database
system: it elects a recovery master, detects cluster-state
inconsistencies, and drives the cluster back to a consistent,
agreed-upon state.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"recoverd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a recoverd config file")
	rootCmd.PersistentFlags().String("admin-address", "", "Control RPC address of the coordinator to talk to (for status/ban/recover/events)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(eventsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig reads --config (if set), overlays any persistent flags
// the operator actually passed, and returns the resolved Config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	overrides := config.FlagOverrides{}
	if cmd.Flags().Changed("log-level") {
		overrides.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		overrides.LogJSONSet = true
		overrides.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	return cfg.ApplyFlagOverrides(overrides), nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recovery coordinator daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		pnn := cfg.PNN
		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
			PNN:        &pnn,
		})

		a, err := newApp(cfg, types.PNN(cfg.PNN))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.WithComponent("recoverd").Info().Msg("shutting down")
			cancel()
		}()

		log.WithComponent("recoverd").Info().
			Str("listen_address", cfg.ListenAddress).
			Msg("recoverd starting")

		return a.run(ctx)
	},
}
