package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/config"
	"github.com/mikepea/snip/pkg/snip/database"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/server"
	"github.com/mikepea/snip/pkg/snip/stats"
	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/mikepea/snip/pkg/snip/sweeper"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// @title Snip API
// @version 1.0
// @description A URL shortener with expiring links, click statistics and archival of unused links.

// @contact.name Snip Support
// @contact.url https://github.com/mikepea/snip

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "snip-server",
		Short:         "URL shortener server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				defer database.Close(db)
				return nil
			},
		},
		newSweepCommand(cfg),
	)
	return root
}

func newSweepCommand(cfg *config.Config) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Archive links unused for --days days and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			links := store.NewLinks(db, store.WithTimeout(cfg.StoreTimeout))
			res, err := sweeper.New(links, sweeper.WithTimeout(cfg.SweepTimeout)).Sweep(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d link(s) unused since %s\n", res.Archived, res.Cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", cfg.SweepDays, "Archive links last used more than this many days ago")
	return cmd
}

// openDB connects and migrates.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	opts := database.DefaultOptions
	opts.MaxOpenConns = cfg.DBMaxOpenConns

	db, err := database.ConnectWithOptions(cfg.DBDSN, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed")
	return db, nil
}

func statsBackend(ctx context.Context, cfg *config.Config) (stats.Backend, func(), error) {
	if cfg.RedisURL == "" {
		return stats.NewMemoryBackend(cfg.StatsTTL), func() {}, nil
	}

	rdb, err := stats.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Println("Using redis for link stats cache")
	return stats.NewRedisBackend(rdb, cfg.StatsTTL), func() { rdb.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logFile := cfg.SetupLogging()
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if cfg.AdminPassword != "" {
		if err := auth.EnsureAdmin(ctx, db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to ensure admin user exists: %w", err)
		}
	}
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, using the development secret")
	}

	backend, closeBackend, err := statsBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	srv, err := server.New(cfg, db, backend)
	if err != nil {
		return err
	}
	if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting Snip server on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
