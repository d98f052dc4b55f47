package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/betedge/internal/adapters/http/api"
	"github.com/okian/betedge/internal/adapters/http/site"
	"github.com/okian/betedge/internal/adapters/http/swagger"
	"github.com/okian/betedge/internal/adapters/http/web"
	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/config"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6

	boardPollInterval = 100 * time.Millisecond
	boardWaitTimeout  = 30 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "betedge",
		Short:         "Odds-driven picks, analysis and bet tracking",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newPicksCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Long: `Run the HTTP server.

Configuration is layered from defaults, the YAML file named by BETEDGE_CONFIG
and BETEDGE_* environment variables. Without BETEDGE_ODDS_API_KEY the server
runs in demo mode on generated odds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newPicksCmd() *cobra.Command {
	var (
		sport  string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "picks",
		Short: "Refresh odds once and print the top picks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPicks(cmd.Context(), cmd.OutOrStdout(), sport, limit, asJSON)
		},
	}
	cmd.Flags().StringVar(&sport, "sport", "", "only this sport (nfl, nba, mlb, ncaaf)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of picks (default max_picks)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// setup loads configuration and initialises logging and metrics.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(metrics.WithNamespace(cfg.MetricsNamespace))
	return cfg, nil
}

func runServe(parent context.Context) error {
	// Drop the default collectors; system metrics are collected below.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	svc := service.New(service.WithConfig(cfg), service.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("version", version),
			logger.Bool("demoMode", cfg.DemoMode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux wires every HTTP surface onto one mux.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()

	api.NewServer(svc,
		api.WithVersion(version),
		api.WithAdminToken(cfg.AdminToken),
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithMaxPicks(cfg.MaxPicks),
		api.WithSecureCookies(cfg.SecureCookies),
	).Register(ctx, mux)

	web.NewHandler(svc,
		web.WithAnalyticsID(cfg.AnalyticsID),
		web.WithMaxPicks(cfg.MaxPicks),
	).Register(ctx, mux)

	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	return mux
}

func runPicks(parent context.Context, out io.Writer, sport string, limit int, asJSON bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if limit <= 0 {
		limit = cfg.MaxPicks
	}

	svc := service.New(service.WithConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if err := svc.RefreshNow(ctx); err != nil {
		logger.Get().Warn(ctx, "refresh finished with errors", logger.Error(err))
	}
	waitForBoard(ctx, svc)

	recs, err := svc.TopPicks(ctx, sport, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	return printPicks(out, recs)
}

// waitForBoard blocks until the analysis queue is empty and the processed
// count has settled.
func waitForBoard(ctx context.Context, svc *service.Service) {
	deadline := time.After(boardWaitTimeout)
	ticker := time.NewTicker(boardPollInterval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			stats := svc.GetStats()
			queued, _ := stats["queueLength"].(int)
			analysed, _ := stats["analysed"].(int64)
			if queued == 0 && analysed == last {
				return
			}
			last = analysed
		}
	}
}

func printPicks(out io.Writer, recs []picks.Recommendation) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SPORT\tGAME\tSTART\tLEVEL\tCONF\tPICK\tODDS\tBOOK\tEV")
	loc := odds.Eastern()
	for _, rec := range recs {
		line := []any{rec.Sport.Title(), rec.Matchup(), odds.FormatGameTime(rec.CommenceTime, loc),
			rec.Analysis.Level, fmt.Sprintf("%.1f", rec.Analysis.Confidence)}
		if b, ok := rec.Primary(); ok {
			line = append(line, b.Pick, fmt.Sprintf("%.2f", b.Price), b.Book, fmt.Sprintf("%+.1f%%", b.ExpectedValue*100))
		} else {
			line = append(line, "-", "-", "-", "-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", line...)
	}
	if len(recs) == 0 {
		fmt.Fprintln(tw, "no picks available")
	}
	return tw.Flush()
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue, board and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats sets the
// queue, board and worker gauges itself.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if capacity, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(capacity)
		if queueLen, ok := stats["queueLength"].(int); ok && capacity > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(capacity))
		}
	}
}
