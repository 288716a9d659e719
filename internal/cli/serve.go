package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/api"
	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/db"
	"github.com/taskvault/taskvault/internal/db/driver"
	"github.com/taskvault/taskvault/internal/store"
)

// newServeCmd creates the serve command for the archive daemon
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the archive daemon",
		Long: `Start the taskvault daemon: the authoritative archive store and
its REST/WebSocket API.

Example:
  taskvault serve              # Start on the configured address
  taskvault serve --port 3000  # Start on a custom port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}

			backend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			logger := cfg.NewLogger()
			server := api.New(&api.Config{
				Addr:     cfg.Server.Addr(),
				Logger:   logger,
				StatsTTL: cfg.Server.StatsTTL,
			}, backend)

			fmt.Printf("Starting taskvault daemon on %s (%s store)...\n",
				cfg.Server.Addr(), cfg.Database.Driver)
			fmt.Println("Press Ctrl+C to stop")

			// Handle graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				fmt.Println("\nShutting down...")
				cancel()
			}()

			return server.StartContext(ctx)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")

	return cmd
}

// openBackend opens the configured authoritative store.
func openBackend(cfg *config.Config) (store.Backend, error) {
	dialect, err := driver.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case driver.DialectPostgres:
		vdb, err := db.OpenVaultDSN(cfg.Database.Postgres.DSN(), driver.DialectPostgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store.NewDatabaseBackend(vdb), nil
	default:
		path := cfg.Database.SQLite.Path
		if path == "" {
			path, err = db.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("resolve database path: %w", err)
			}
		}
		vdb, err := db.OpenVault(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store.NewDatabaseBackend(vdb), nil
	}
}
