// Command paddock evaluates one racehorse field from an analysis request
// and prints the resulting report as JSON.
//
// Usage:
//
//	paddock [request.json]
//
// With no argument the request is read from stdin. Prometheus metrics are
// served on the configured metrics address for the lifetime of the run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	app "github.com/gaitlab/paddock/internal/app"
	"github.com/gaitlab/paddock/internal/config"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection; the custom registry carries
	// everything the pipeline exposes.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	flag.Parse()
	req, err := readRequest(flag.Arg(0))
	if err != nil {
		os.Stderr.WriteString("failed to read analysis request: " + err.Error() + "\n")
		os.Exit(1)
	}

	svc := app.New(cfg, app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer svc.Stop()

	go serveMetrics(ctx, cfg.MetricsAddr, log)

	report, err := svc.Evaluate(ctx, req)
	if err != nil {
		log.Error(ctx, "evaluation failed", logger.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error(ctx, "failed to encode report", logger.Error(err))
		os.Exit(1)
	}
}

// readRequest loads the analysis request from path, or stdin when path is
// empty or "-".
func readRequest(path string) (model.AnalysisRequest, error) {
	var raw []byte
	var err error
	if path == "" || path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return model.AnalysisRequest{}, err
	}

	var req model.AnalysisRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return model.AnalysisRequest{}, err
	}
	return req, nil
}

// serveMetrics exposes /metrics until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving metrics", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn(ctx, "metrics server stopped", logger.Error(err))
	}
}
