// Command bunny-sandbox serves an in-memory storage zone over the Bunny Edge
// Storage HTTP API for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/bunnystorage/storage_sdk_go/internal/config"
	"github.com/bunnystorage/storage_sdk_go/internal/devseed"
	"github.com/bunnystorage/storage_sdk_go/internal/logger"
	"github.com/bunnystorage/storage_sdk_go/internal/memzone"
	"github.com/bunnystorage/storage_sdk_go/internal/sandbox"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	zoneName := flag.String("zone", "", "storage zone name (overrides config)")
	accessKey := flag.String("access-key", "", "required AccessKey header (overrides config; empty disables the check)")
	seed := flag.String("seed", "", "path to YAML or JSON seed file (overrides config)")
	latency := flag.Duration("latency", -1, "artificial latency to inject per request (overrides config)")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bunny-sandbox: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Sandbox.Addr = *addr
	}
	if *zoneName != "" {
		cfg.Sandbox.Zone = *zoneName
	}
	if *accessKey != "" {
		cfg.Storage.AccessKey = *accessKey
	}
	if *seed != "" {
		cfg.Sandbox.Seed = *seed
	}
	if *latency >= 0 {
		cfg.Sandbox.Latency = *latency
	}
	if *fail != "" {
		cfg.Sandbox.Fail = *fail
	}

	log, err := logger.New(cfg.Logger.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bunny-sandbox: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := serve(cfg, log); err != nil {
		log.Fatal("sandbox failed", zap.Error(err))
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	failCfg, err := sandbox.ParseFailConfig(cfg.Sandbox.Fail)
	if err != nil {
		return fmt.Errorf("parse fail config: %w", err)
	}

	zone := memzone.New(cfg.Sandbox.Zone)
	if cfg.Sandbox.Seed != "" {
		entries, err := devseed.Load(cfg.Sandbox.Seed)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := zone.Seed(entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Info("seeded zone", zap.String("zone", zone.Name()), zap.Int("entries", len(entries)))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := sandbox.New(sandbox.Config{
		AccessKey: cfg.Storage.AccessKey,
		Latency:   cfg.Sandbox.Latency,
		Fail:      failCfg,
	}, []*memzone.Zone{zone}, sandbox.WithLogger(log), sandbox.WithRegistry(registry))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("bunny-sandbox listening",
		zap.String("addr", cfg.Sandbox.Addr),
		zap.String("zone", zone.Name()),
		zap.Duration("latency", cfg.Sandbox.Latency),
		zap.Float64("fail_rate", failCfg.Rate),
	)
	printExports(cfg)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func printExports(cfg *config.Config) {
	host := cfg.Sandbox.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Println("export BUNNY_RUNTIME_MODE=http")
	fmt.Printf("export BUNNY_STORAGE_ZONE=%s\n", cfg.Sandbox.Zone)
	fmt.Printf("export BUNNY_BASE_URL=http://%s/%s\n", host, cfg.Sandbox.Zone)
	if cfg.Storage.AccessKey != "" {
		fmt.Printf("export BUNNY_ACCESS_KEY=%s\n", cfg.Storage.AccessKey)
	} else {
		fmt.Println("export BUNNY_ACCESS_KEY=sandbox")
	}
	fmt.Println()
}
