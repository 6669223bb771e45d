package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/nooikko/nightreign-query/internal/transport/chi"
	healthuc "github.com/nooikko/nightreign-query/internal/usecase/health"
	"github.com/nooikko/nightreign-query/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.HTTP.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: http.port)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	a.logger.Info("Starting nightreign API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
	)

	store, err := a.redisStore(ctx)
	if err != nil {
		return err
	}
	searchSvc, err := a.searchService(ctx)
	if err != nil {
		return err
	}

	// Health service: cache and embedding checks are optional.
	var cache healthuc.Pinger
	if cs, err := a.contentStore(ctx); err == nil {
		cache = cs
	} else {
		a.logger.Warn("Content cache unavailable, health will not report it", zap.Error(err))
	}
	var embedding healthuc.EmbeddingChecker
	if emb, err := a.instrumentedEmbedder(); err == nil {
		embedding = emb
	} else {
		a.logger.Warn("Embedding provider not configured, serving fulltext only", zap.Error(err))
	}
	healthSvc := healthuc.New(store, cache, embedding, a.logger)

	server := chiTransport.NewServer(searchSvc, healthSvc, a.logger)
	handler := chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, a.logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
