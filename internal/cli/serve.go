package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vorn/vorn/internal/config"
	"github.com/vorn/vorn/internal/engine"
	"github.com/vorn/vorn/internal/explain"
	"github.com/vorn/vorn/internal/httpapi"
	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
	"github.com/vorn/vorn/internal/pipeline"
	"github.com/vorn/vorn/internal/store"
)

var serveAddrFlag string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the processing API, file history, explanations, health and
Prometheus metrics. Settings come from VORN_* environment variables and
DATABASE_URL; without DATABASE_URL results are kept in memory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (overrides VORN_BIND_ADDR)")
}

// GetServeCmd export
func GetServeCmd() *cobra.Command {
	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddrFlag != "" {
		cfg.BindAddr = serveAddrFlag
	}

	ctx := observability.WithComponent(cmd.Context(), "http")
	log := logging.From(ctx)

	e, err := engine.NewDefault()
	if err != nil {
		return fmt.Errorf("failed to load rule catalog: %w", err)
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	processor := pipeline.New(e, pipeline.Options{
		Workers:  cfg.Workers,
		MaxRows:  cfg.MaxRows,
		MaxBytes: cfg.MaxBytes,
		Metrics:  metrics,
	})

	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var explainer explain.Explainer = explain.FallbackExplainer{}
	if cfg.ExplainURL != "" {
		explainer = explain.NewHTTPExplainer(cfg.ExplainURL, cfg.ExplainAPIKey, cfg.ExplainModel, cfg.ExplainTimeout)
	}

	api := httpapi.New(cfg, processor, st, explainer, metrics, log)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http", "server listening", "addr", cfg.BindAddr, "catalog_version", e.Catalog().Version())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
		return nil
	case <-runCtx.Done():
	}

	log.Info("http", "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http", "graceful shutdown failed", "error", err.Error())
		_ = httpServer.Close()
	}
	log.Info("http", "shutdown complete")
	return nil
}
