package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/model-history-go/config"
	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/history/oteladapters"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

type Flags struct {
	ConfigFile           string
	EnvFile              string
	ObservabilityEnabled bool
	Verbose              bool
}

func main() {
	flags := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	var loadOptions []config.LoadOption
	if flags.ConfigFile != "" {
		loadOptions = append(loadOptions, config.WithConfigFile(flags.ConfigFile))
	}
	if flags.EnvFile != "" {
		loadOptions = append(loadOptions, config.WithEnvFiles(flags.EnvFile))
	}

	cfg, err := config.Load(loadOptions...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	engine, closeEngine, err := config.OpenEngine(ctx, cfg.Database, sqlengine.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer closeEngine()

	trackingOptions, err := cfg.Tracking.Options()
	if err != nil {
		log.Fatalf("Invalid tracking configuration: %v", err)
	}

	trackingOptions = append(trackingOptions, history.WithLogger(logger))

	var telemetry *demoTelemetry
	if flags.ObservabilityEnabled {
		telemetry = newDemoTelemetry()
		defer telemetry.shutdown()

		trackingOptions = append(trackingOptions,
			history.WithMetrics(oteladapters.NewMetricsCollector(telemetry.meterProvider.Meter("history-demo"))),
			history.WithTracing(oteladapters.NewTracingCollector(telemetry.tracerProvider.Tracer("history-demo"))),
		)
	}

	if err := run(ctx, engine, logger, trackingOptions); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}

	if telemetry != nil {
		telemetry.report(ctx, logger)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigFile, "config", "", "path of a yaml, json or toml configuration file")
	flag.StringVar(&flags.EnvFile, "env-file", "", "path of a .env file with HISTORY_* variables")
	flag.BoolVar(&flags.ObservabilityEnabled, "observability-enabled", false, "record history metrics and traces with OpenTelemetry")
	flag.BoolVar(&flags.Verbose, "verbose", false, "log executed sql and installed hooks")
	flag.Parse()

	return flags
}

// demoTelemetry keeps OpenTelemetry data in process and prints a summary when the demo ends.
type demoTelemetry struct {
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

func newDemoTelemetry() *demoTelemetry {
	reader := sdkmetric.NewManualReader()

	return &demoTelemetry{
		reader:         reader,
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		tracerProvider: sdktrace.NewTracerProvider(),
	}
}

func (t *demoTelemetry) report(ctx context.Context, logger *slog.Logger) {
	var resourceMetrics metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &resourceMetrics); err != nil {
		logger.Warn("collecting metrics failed", "error", err.Error())
		return
	}

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			logger.Info("metric recorded", "name", m.Name, "unit", m.Unit)
		}
	}
}

func (t *demoTelemetry) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = t.tracerProvider.Shutdown(ctx)
	_ = t.meterProvider.Shutdown(ctx)
}
