// Package cmd holds the ledgerctl commands, which run the ledger's maintenance jobs
// against the configured database without starting the HTTP server.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saadkhan2003/masjid-ledger/internal/app"
	"github.com/saadkhan2003/masjid-ledger/internal/config"
	"github.com/saadkhan2003/masjid-ledger/internal/logging"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Run masjid ledger maintenance jobs",
	Long: `ledgerctl runs the dues ledger jobs by hand: monthly debt generation,
the overdue sweep, total recalculation and offline outbox replay.

Example:
  ledgerctl run
  ledgerctl recalc 3f0c7a9e-8d1b-4a53-9b8e-4f2d1c6b7a10`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
		} else {
			_ = godotenv.Load()
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logging.Setup(cfg.Log.Level)

		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))

		return nil
	},
}

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}

// openApp opens the database-backed services. The outbox stays closed unless withRelay
// is set, so jobs can run next to a live server.
func openApp(cmd *cobra.Command, withRelay bool) (*app.App, error) {
	var opts []app.Option
	if !withRelay {
		opts = append(opts, app.WithoutRelay())
	}

	return app.Open(configFrom(cmd), opts...)
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(migrateCmd, generateCmd, sweepCmd, runCmd, initCmd, recalcCmd, replayCmd)
}
