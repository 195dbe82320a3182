// Package main is the entry point for the triangular arbitrage simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	cycleapp "github.com/solkite/triarb/business/cycle/app"
	cycleinfra "github.com/solkite/triarb/business/cycle/infra"
	poolapp "github.com/solkite/triarb/business/pool/app"
	pooldomain "github.com/solkite/triarb/business/pool/domain"
	poolinfra "github.com/solkite/triarb/business/pool/infra"
	swapapp "github.com/solkite/triarb/business/swap/app"
	"github.com/solkite/triarb/internal/apm"
	"github.com/solkite/triarb/internal/config"
	"github.com/solkite/triarb/internal/health"
	"github.com/solkite/triarb/internal/logger"
	"github.com/solkite/triarb/internal/metrics"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	poolsPath := flag.String("pools", "", "Path to the raw pools JSON file (overrides config)")
	serveMode := flag.Bool("serve", false, "Keep health and metrics servers running after the search")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("triarb-sim %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *poolsPath, *serveMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, poolsPath string, serveMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if poolsPath != "" {
		cfg.Pools.File = poolsPath
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting triangular arbitrage simulator",
		"version", version,
		"environment", cfg.App.Environment,
		"pools_file", cfg.Pools.File,
	)

	meters := metrics.New(cfg.Telemetry.ServiceName)

	var traceProvider apm.TraceProvider = apm.NewEmptyTraceProvider()
	if cfg.Telemetry.Enabled {
		traceProvider = apm.NewConsoleTraceProvider(cfg.Telemetry.ServiceName)
		log.Info(ctx, "tracing initialized", "provider", "console")

		go func() {
			if err := meters.Serve(cfg.Telemetry.PrometheusPort); err != nil {
				log.Warn(ctx, "metrics server stopped", "error", err)
			}
		}()
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}
	defer traceProvider.Stop()

	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Telemetry.HealthPort)
	}
	defer healthServer.Stop(ctx)

	report, err := simulate(ctx, cfg, log, meters)
	if err != nil {
		return err
	}

	reporter := cycleinfra.NewConsoleReporter(cfg.Search.MaxRoutes)
	if err := reporter.Report(ctx, report); err != nil {
		return err
	}

	healthServer.RegisterCheck("last_run", func(context.Context) (bool, string) {
		return true, fmt.Sprintf("%d cycles, %d passing", report.Stats.CyclesEmitted, report.Stats.CyclesPassing)
	})

	if serveMode {
		log.Info(ctx, "serve mode: waiting for shutdown signal")
		<-ctx.Done()
	}
	return nil
}

func simulate(ctx context.Context, cfg *config.Config, log *logger.Logger, meters *metrics.Metrics) (*cycleapp.SearchReport, error) {
	source := poolinfra.NewFileSource(cfg.Pools.File)
	raws, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	log.Info(ctx, "raw pool records loaded", "count", len(raws))

	normalizer := poolapp.NewNormalizer(poolapp.NormalizerConfig{
		MinTVL:      decimalFromFloat(cfg.Pools.MinTVL),
		MinVolume24: decimalFromFloat(cfg.Pools.MinVolume24),
	}, log, meters)

	started := time.Now()
	pools := normalizer.NormalizeAll(ctx, raws)
	meters.ObservePhase("normalize", time.Since(started))
	log.Info(ctx, "pools normalized", "accepted", len(pools), "rejected", len(raws)-len(pools))

	var oracle poolapp.ReserveOracle
	if cfg.Oracle.RPCURL != "" {
		oracle = poolinfra.NewRPCOracle(cfg.Oracle.RPCURL, log,
			poolinfra.WithMaxRetries(cfg.Oracle.MaxRetries),
			poolinfra.WithRetryBackoff(cfg.Oracle.RetryBackoff),
			poolinfra.WithRateLimit(cfg.Oracle.RatePerSecond, cfg.Oracle.Concurrency),
		)
		log.Info(ctx, "reserve oracle bound", "endpoint", cfg.Oracle.RPCURL)
	}

	enricher := poolapp.NewEnricher(oracle, nil, poolapp.EnricherConfig{
		Concurrency:  cfg.Oracle.Concurrency,
		MaxBatchSize: cfg.Oracle.MaxBatchSize,
	}, log, meters)

	started = time.Now()
	enriched := enricher.EnrichAll(ctx, pools)
	meters.ObservePhase("enrich", time.Since(started))

	swapper := swapapp.NewSwapper(nil)
	ready := poolapp.MathReadyPools(enriched, swapper.HasQuoter())
	log.Info(ctx, "pools enriched", "math_ready", len(ready), "excluded", len(enriched)-len(ready))

	engine, err := cycleapp.NewEngine(swapper, cycleapp.EngineConfig{
		StartToken:          pooldomain.Mint(cfg.Search.StartToken),
		PivotToken:          pooldomain.Mint(cfg.Search.PivotToken),
		InputAtomic:         new(big.Int).SetUint64(cfg.Search.InputAtomic),
		ThresholdPct:        cfg.Search.ThresholdPctDecimal(),
		MaxProfitPct:        cfg.Search.MaxProfitPctDecimal(),
		MaxLossPct:          cfg.Search.MaxLossPctDecimal(),
		MaxPoolsPerLeg:      cfg.Search.MaxPoolsPerLeg,
		MaxRoutes:           cfg.Search.MaxRoutes,
		MedianOutlierFactor: cfg.Search.MedianOutlierFactorDecimal(),
		Workers:             cfg.Oracle.Concurrency,
	}, log, meters)
	if err != nil {
		return nil, err
	}

	return engine.Search(ctx, ready)
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
