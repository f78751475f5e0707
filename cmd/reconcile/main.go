package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	csvimport "github.com/erp/catalogsync/internal/infrastructure/import"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/storage"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(stderr) }

	var (
		configPath string
		logLevel   string
		archive    bool
	)
	global.StringVar(&configPath, "config", "", "Path to a config file (default: ./config.toml when present)")
	global.StringVar(&logLevel, "log-level", "", "Log level (default: log.level from the config)")
	global.BoolVar(&archive, "archive", false, "Upload the report to object storage")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		printUsage(stderr)
		return exitUsage
	}
	command, rest := global.Arg(0), global.Args()[1:]

	if err := bootstrap.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitError
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log, err := logger.New(logger.CLIConfig(logLevel))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, log = logger.WithRunID(ctx, log, uuid.NewString())

	err = execute(ctx, cfg, log, command, rest, archive, stdout, stderr)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrUsage):
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	default:
		log.Error("Command failed", zap.String("command", command), zap.Error(err))
		return exitError
	}
}

func execute(ctx context.Context, cfg *config.Config, log *zap.Logger, command string, args []string, archive bool, stdout, stderr io.Writer) error {
	tel, err := bootstrap.NewTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = tel.Logger(log, zap.String("run_id", logger.RunID(ctx)))
	ctx = logger.WithContext(ctx, log)

	objects, err := bootstrap.NewObjectStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	r := &runner{out: stdout, log: log, prefix: cfg.Storage.ReportPrefix}
	if archive {
		if objects == nil {
			return ErrArchiveDisabled
		}
		r.archive = objects
	}

	log.Info("Command started", zap.String("command", command))

	switch command {
	case "prices":
		opts, err := parsePricesArgs(args, stderr)
		if err != nil {
			return err
		}
		storefront, err := bootstrap.NewShopifyClient(cfg, log, tel.Platform)
		if err != nil {
			return err
		}
		sellsy, err := bootstrap.NewSellsyClient(cfg, log, tel.Platform)
		if err != nil {
			return err
		}
		return r.prices(ctx, appintegration.NewPriceReconciliationService(storefront, sellsy, log.Named("prices")), opts)

	case "purchase-prices":
		opts, err := parsePurchaseArgs(args, stderr)
		if err != nil {
			return err
		}
		reader, err := csvimport.NewLedgerReader(bootstrap.LedgerConfig(cfg.Sync), log.Named("ledger"))
		if err != nil {
			return err
		}
		sellsy, err := bootstrap.NewSellsyClient(cfg, log, tel.Platform)
		if err != nil {
			return err
		}
		load := func(ctx context.Context, location string) ([]integration.LedgerEntry, error) {
			return readLedger(ctx, location, objects, reader, log)
		}
		return r.purchasePrices(ctx, appintegration.NewPurchasePriceService(sellsy, log.Named("purchase_prices")), load, opts)

	case "stock", "track":
		storefront, err := bootstrap.NewShopifyClient(cfg, log, tel.Platform)
		if err != nil {
			return err
		}
		svc := appintegration.NewStockService(storefront, log.Named("stock"))
		if command == "stock" {
			opts, err := parseStockArgs(args, stderr)
			if err != nil {
				return err
			}
			return r.stock(ctx, svc, opts)
		}
		opts, err := parseTrackArgs(args, stderr)
		if err != nil {
			return err
		}
		return r.track(ctx, svc, opts)

	default:
		printUsage(stderr)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}

func readLedger(ctx context.Context, location string, objects *storage.Bucket, reader *csvimport.LedgerReader, log *zap.Logger) ([]integration.LedgerEntry, error) {
	rc, err := storage.OpenLedger(ctx, location, objects)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	result, err := reader.Read(rc)
	if err != nil {
		return nil, err
	}
	if result.Skipped.Total() > 0 {
		log.Warn("Ledger rows skipped",
			zap.String("ledger", location),
			zap.Int("count", result.Skipped.Total()),
		)
	}
	log.Info("Ledger loaded", zap.String("ledger", location), zap.Int("rows", len(result.Entries)))
	return result.Entries, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `catalogsync reconciliation tool

Usage:
  reconcile [flags] <command> [arguments]

Commands:
  prices [-dry-run]                              Compare storefront and ERP prices and write storefront prices back
  purchase-prices -ledger <path|s3://> [-dry-run] Update ERP purchase amounts from the purchase ledger
  stock -sku <sku> -quantity <n>                 Set the available quantity of a storefront variant
  track -sku <a,b,...>                           Enable inventory tracking and print the variant identifiers

Flags:
  -config string      Config file (default: ./config.toml when present)
  -log-level string   Log level: debug, info, warn, error
  -archive            Upload the report under storage.report_prefix

Reports go to stdout, logs to stderr.`)
}
