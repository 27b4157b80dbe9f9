/*
serve.go - HTTP server command

STARTUP SEQUENCE:
  1. Load configuration and open the store
  2. Start the integrity scheduler
  3. Create API handler and router
  4. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/worktime-engine/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides configuration)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()
	if servePort != 0 {
		rt.cfg.Port = servePort
	}

	scheduler := api.NewIntegrityScheduler(rt.store, rt.rules, rt.logger)
	scheduler.CheckInterval = rt.cfg.IntegrityInterval
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(rt.store, rt.rules,
		api.WithLogger(rt.logger),
		api.WithScheduler(scheduler),
		api.WithBackfillConcurrency(rt.cfg.BackfillConcurrency),
	)
	router := api.NewRouter(handler, rt.cfg.CORSOrigins)

	server := &http.Server{
		Addr:         rt.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	rt.logger.Info("server stopped")
	return nil
}
