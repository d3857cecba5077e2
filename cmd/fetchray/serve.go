package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gwlsn/fetchray"
	"github.com/gwlsn/fetchray/internal/api"
	"github.com/gwlsn/fetchray/internal/jobs"
	"github.com/gwlsn/fetchray/internal/logger"
	"github.com/gwlsn/fetchray/internal/store"
	"github.com/gwlsn/fetchray/internal/sweeper"
	"github.com/gwlsn/fetchray/internal/util"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the download server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}

			for _, dir := range []string{cfg.DownloadDir, cfg.DataDir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			// One server per data dir; two sweepers on one download dir would race
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another fetchray server holds %s", cfg.LockPath())
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("Failed to release lock", "error", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := ctx.newEngine(cmd)
			if err != nil {
				return err
			}

			var (
				history     store.Store
				jobsHistory jobs.History
			)
			if cfg.History {
				db, err := store.NewSQLiteStore(cfg.DBPath())
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer db.Close()
				// Session counters cover one server run
				if err := db.ResetSession(); err != nil {
					logger.Warn("Failed to reset session stats", "error", err)
				}
				history, jobsHistory = db, db
			}

			registry := jobs.NewRegistry()
			manager := jobs.NewManager(registry, eng, cfg, jobsHistory)
			sw := sweeper.New(cfg.DownloadDir, cfg.Retention.Std(), cfg.SweepInterval.Std()).
				WithEviction(registry, cfg.JobTTL.Std())

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           api.NewRouter(api.NewHandler(manager, history, sw)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			printBanner(cfg.Port, ctx.configPath, cfg.DownloadDir, history)
			logger.Info("Fetchray started",
				"version", fetchray.Version,
				"port", cfg.Port,
				"max_concurrent", cfg.MaxConcurrent,
				"retention", util.FormatDuration(cfg.Retention.Std()))

			g, gctx := errgroup.WithContext(runCtx)

			g.Go(func() error {
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})

			// Sweeps on start, on every tick, and once more on the way out
			g.Go(func() error {
				return sw.Run(gctx)
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Downloads did not stop in time", "error", err)
				}
				return server.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			logger.Info("Server stopped")
			fmt.Fprintln(cmd.OutOrStdout(), "  Goodbye!")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	return cmd
}

func printBanner(port int, configPath, downloadDir string, history store.Store) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                          FETCHRAY                         ║")
	fmt.Println("║              Media downloads over a small API             ║")
	versionLine := fmt.Sprintf("v%s", fetchray.Version)
	padding := 59 - len(versionLine)
	fmt.Printf("║%*s%s%*s║\n", padding/2, "", versionLine, (padding+1)/2, "")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Downloads:    %s\n", downloadDir)
	fmt.Printf("  Config:       %s\n", configPath)
	if db, ok := history.(*store.SQLiteStore); ok {
		fmt.Printf("  Database:     %s\n", db.Path())
	} else {
		fmt.Printf("  Database:     (history disabled)\n")
	}
	fmt.Printf("  Port:         %d\n", port)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()
}
