// Command bunnystorage lists, uploads, downloads and deletes files in a Bunny
// storage zone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bunnystorage/storage_sdk_go/internal/config"
	"github.com/bunnystorage/storage_sdk_go/internal/logger"
	"github.com/bunnystorage/storage_sdk_go/pkg/bunnystorage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bunnystorage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to YAML config file")
	verbose := fs.Bool("v", false, "log every storage request")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "bunnystorage: %v\n", err)
		return 1
	}
	logCfg := cfg.Logger.Logger()
	if *verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "bunnystorage: init logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	client, err := newClient(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create storage client", zap.Error(err))
		return 1
	}

	if err := runCommand(ctx, client, fs.Args(), stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "bunnystorage: %v\n", err)
			fs.Usage()
			return 2
		}
		log.Error("command failed", zap.String("command", fs.Arg(0)), zap.Error(err))
		return 1
	}
	return 0
}

func newClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*bunnystorage.Client, error) {
	vaultClient, err := config.NewVaultClient(&cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("init vault client: %w", err)
	}
	if err := config.ApplyVaultSecrets(ctx, cfg, vaultClient); err != nil {
		return nil, err
	}

	opts := []bunnystorage.Option{
		bunnystorage.WithLogger(log),
		bunnystorage.WithHTTPClient(&http.Client{Timeout: cfg.Storage.Timeout}),
	}
	if cfg.Storage.BaseURL != "" {
		opts = append(opts, bunnystorage.WithBaseURL(cfg.Storage.BaseURL))
	}
	return bunnystorage.New(bunnystorage.Config{
		AccessKey:   cfg.Storage.AccessKey,
		StorageZone: cfg.Storage.StorageZone,
		Region:      cfg.Storage.Region,
	}, opts...)
}
