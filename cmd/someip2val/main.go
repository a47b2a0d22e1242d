// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/bridge"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/config"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/process"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/publisher"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/someip"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/version"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/wiper"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the command-line flags. Flags that are set override
// the corresponding config file values.
type options struct {
	configPath    string
	busURL        string
	compression   string
	metricsListen string
	logLevel      string
	useTCP        bool
	dummyFeeder   bool
	showVersion   bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("someip2val", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&opts.busURL, "bus", "", "NATS server URL")
	flagSet.StringVar(&opts.compression, "compression", "", "frame compression: none, lz4, zstd")
	flagSet.StringVar(&opts.metricsListen, "metrics-listen", "", "host:port for the Prometheus /metrics endpoint")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default: from $"+config.EnvDebug+")")
	flagSet.BoolVar(&opts.useTCP, "tcp", false, "receive events on the reliable (TCP) port")
	flagSet.BoolVar(&opts.dummyFeeder, "dummy-feeder", false, "publish a synthetic wiper position ramp")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, flagSet, err
	}
	if flagSet.NArg() > 0 {
		return nil, flagSet, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return &opts, flagSet, nil
}

// loadConfig reads the config file and layers the set flags on top.
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("bus") {
		cfg.Bus.URL = opts.busURL
	}
	if flagSet.Changed("compression") {
		cfg.Bus.Compression = opts.compression
	}
	if flagSet.Changed("metrics-listen") {
		cfg.Metrics.Listen = opts.metricsListen
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flagSet.Changed("tcp") {
		cfg.SomeIP.UseTCP = opts.useTCP
	}
	if flagSet.Changed("dummy-feeder") {
		cfg.DummyFeeder = opts.dummyFeeder
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage(err)
	}
	if opts.showVersion {
		fmt.Printf("someip2val %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		err = fmt.Errorf("loading config: %w", err)
		// A file that cannot be read is an environment failure; bad
		// contents or values are usage errors.
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return err
		}
		return process.Usage(err)
	}

	debug := config.Verbosity(os.Getenv)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(debug),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bridgeMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	signals, err := vss.Register(wiper.Descriptors())
	if err != nil {
		return fmt.Errorf("building signal registry: %w", err)
	}

	pub, err := publisher.New(cfg.Bus.URL, signals, publisher.Options{
		SubjectPrefix:  cfg.Bus.SubjectPrefix,
		Compression:    cfg.BusCompression(),
		BufferMaxBytes: cfg.Bus.BufferMaxBytes,
		Logger:         logger,
		Metrics:        bridgeMetrics,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	b, err := bridge.New(bridge.Config{
		Registry:  signals,
		Publisher: pub,
		Binding: bridge.Binding{
			ID: someip.EventID{
				Service:  wiper.ServiceID,
				Instance: wiper.InstanceID,
				Event:    wiper.EventID,
			},
			Name:   "wiper",
			Decode: wiper.DecodeRecord,
		},
		NewProtocolClient: protocolClientFactory(cfg, debug, logger),
		Dummy: bridge.DummyConfig{
			ActualPositionPath: wiper.PathActualPosition,
			TargetPositionPath: wiper.PathTargetPosition,
		},
		Debug:   debug,
		Logger:  logger,
		Metrics: bridgeMetrics,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	logger.Info("someip2val starting",
		"version", version.Info(),
		"bus", cfg.Bus.URL,
		"subject_prefix", cfg.Bus.SubjectPrefix,
		"compression", cfg.BusCompression().String(),
		"source", pub.Source(),
		"signals", signals.Len(),
		"environment", cfg.Environment,
	)

	if cfg.Metrics.Listen != "" {
		server, err := serveMetrics(cfg.Metrics.Listen, registry, logger)
		if err != nil {
			return err
		}
		defer stopMetrics(server, logger)
	}

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer b.Close()

	if cfg.DummyFeeder {
		go func() {
			if err := b.FeedDummyData(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dummy feeder failed", "error", err)
				return
			}
			logger.Info("dummy feeder finished")
		}()
	}

	<-b.Done()
	logger.Info("someip2val stopped",
		"frames_shipped", pub.Shipped(),
		"frames_pending", pub.Pending(),
		"sequence", pub.Sequence(),
	)
	return nil
}

// protocolClientFactory builds the SOME/IP client from the vsomeip
// environment. Any failure leaves the bridge in publisher-only mode.
func protocolClientFactory(cfg *config.Config, debug int, logger *slog.Logger) func(someip.Listener) (bridge.ProtocolClient, error) {
	return func(listener someip.Listener) (bridge.ProtocolClient, error) {
		environment, err := someip.LoadEnvironment(os.Getenv)
		if err != nil {
			return nil, err
		}
		logger.Info("loading SOME/IP transport config",
			"application", environment.Application,
			"config_path", environment.ConfigPath,
		)
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			if data, err := os.ReadFile(environment.ConfigPath); err == nil {
				logger.Debug("SOME/IP transport config", "contents", string(data))
			}
		}

		transport, err := someip.LoadTransportConfig(environment.ConfigPath)
		if err != nil {
			return nil, err
		}
		client, err := someip.NewClient(someip.Config{
			Application: environment.Application,
			UseTCP:      cfg.SomeIP.UseTCP,
			Debug:       debug,
			Transport:   transport,
		}, listener, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// serveMetrics binds address synchronously so that a bad listen
// address fails startup, then serves /metrics in the background.
func serveMetrics(address string, gatherer prometheus.Gatherer, logger *slog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return server, nil
}

// stopMetrics gives in-flight scrapes five seconds to finish.
func stopMetrics(server interface{ Shutdown(context.Context) error }, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
}
