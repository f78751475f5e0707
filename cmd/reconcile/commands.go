package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
)

var (
	// ErrUsage reports bad command line arguments
	ErrUsage = errors.New("invalid arguments")
	// ErrWriteFailures reports a write-back pass where some items failed
	ErrWriteFailures = errors.New("some writes failed")
	// ErrArchiveDisabled reports -archive without object storage
	ErrArchiveDisabled = errors.New("report archiving requires storage.enabled")
)

type priceRunner interface {
	Run(ctx context.Context, opts appintegration.RunOptions) (*appintegration.PriceReconciliationResult, error)
}

type purchaseRunner interface {
	Run(ctx context.Context, ledger []integration.LedgerEntry, opts appintegration.RunOptions) (*appintegration.PurchasePriceResult, error)
}

type stockController interface {
	SetQuantity(ctx context.Context, sku string, quantity int) error
	Track(ctx context.Context, skus []string) (map[string]integration.StorefrontVariant, []string, error)
}

// reportArchive stores rendered reports, typically in S3
type reportArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// ledgerLoader reads the purchase ledger at a local path or s3:// location
type ledgerLoader func(ctx context.Context, location string) ([]integration.LedgerEntry, error)

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

type pricesOptions struct {
	DryRun bool
}

type purchaseOptions struct {
	Ledger string
	DryRun bool
}

type stockOptions struct {
	SKU      string
	Quantity int
}

type trackOptions struct {
	SKUs []string
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func parsePricesArgs(args []string, out io.Writer) (pricesOptions, error) {
	var opts pricesOptions
	fs := newFlagSet("prices", out)
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Compare only, write nothing to the ERP")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return opts, nil
}

func parsePurchaseArgs(args []string, out io.Writer) (purchaseOptions, error) {
	var opts purchaseOptions
	fs := newFlagSet("purchase-prices", out)
	fs.StringVar(&opts.Ledger, "ledger", "", "Ledger CSV: a local path or s3://bucket/key")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Plan only, write nothing to the ERP")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(opts.Ledger) == "" {
		return opts, fmt.Errorf("%w: -ledger is required", ErrUsage)
	}
	return opts, nil
}

func parseStockArgs(args []string, out io.Writer) (stockOptions, error) {
	opts := stockOptions{Quantity: -1}
	fs := newFlagSet("stock", out)
	fs.StringVar(&opts.SKU, "sku", "", "Variant SKU")
	fs.IntVar(&opts.Quantity, "quantity", -1, "Available quantity")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(opts.SKU) == "" {
		return opts, fmt.Errorf("%w: -sku is required", ErrUsage)
	}
	if opts.Quantity < 0 {
		return opts, fmt.Errorf("%w: -quantity must be zero or more", ErrUsage)
	}
	return opts, nil
}

func parseTrackArgs(args []string, out io.Writer) (trackOptions, error) {
	var raw string
	fs := newFlagSet("track", out)
	fs.StringVar(&raw, "sku", "", "Comma separated SKUs")
	if err := fs.Parse(args); err != nil {
		return trackOptions{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	skus := splitSKUs(append([]string{raw}, fs.Args()...))
	if len(skus) == 0 {
		return trackOptions{}, fmt.Errorf("%w: at least one SKU is required", ErrUsage)
	}
	return trackOptions{SKUs: skus}, nil
}

// splitSKUs flattens comma separated values, dropping blanks and duplicates
func splitSKUs(values []string) []string {
	seen := make(map[string]struct{})
	var skus []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			skus = append(skus, s)
		}
	}
	return skus
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// runner executes one subcommand and renders its report to out
type runner struct {
	out     io.Writer
	log     *zap.Logger
	archive reportArchive
	prefix  string
	now     func() time.Time
}

func (r *runner) prices(ctx context.Context, svc priceRunner, opts pricesOptions) error {
	result, runErr := svc.Run(ctx, appintegration.RunOptions{DryRun: opts.DryRun})
	if result == nil {
		return runErr
	}
	var buf bytes.Buffer
	if err := appintegration.WritePriceReport(&buf, result); err != nil {
		return err
	}
	if err := r.emit(ctx, "prices", buf.Bytes()); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return writeOutcome(result.Sync)
}

func (r *runner) purchasePrices(ctx context.Context, svc purchaseRunner, load ledgerLoader, opts purchaseOptions) error {
	ledger, err := load(ctx, opts.Ledger)
	if err != nil {
		return err
	}
	result, runErr := svc.Run(ctx, ledger, appintegration.RunOptions{DryRun: opts.DryRun})
	if result == nil {
		return runErr
	}
	var buf bytes.Buffer
	if err := appintegration.WritePurchasePriceReport(&buf, result); err != nil {
		return err
	}
	if err := r.emit(ctx, "purchase-prices", buf.Bytes()); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return writeOutcome(result.Sync)
}

func (r *runner) stock(ctx context.Context, svc stockController, opts stockOptions) error {
	if err := svc.SetQuantity(ctx, opts.SKU, opts.Quantity); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.out, "%s: quantity set to %d\n", opts.SKU, opts.Quantity)
	return err
}

func (r *runner) track(ctx context.Context, svc stockController, opts trackOptions) error {
	mapped, missing, err := svc.Track(ctx, opts.SKUs)
	if err != nil {
		return err
	}

	skus := make([]string, 0, len(mapped))
	for sku := range mapped {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SKU\tPRODUCT ID\tVARIANT ID\tINVENTORY ITEM ID\n")
	for _, sku := range skus {
		v := mapped[sku]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", sku, v.ProductID, v.VariantID, v.InventoryItemID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(missing) > 0 {
		_, err = fmt.Fprintf(r.out, "\nUnknown on the storefront (%d): %s\n", len(missing), strings.Join(missing, ", "))
	}
	return err
}

// emit writes the report to out and, when archiving, uploads it and logs a
// download link
func (r *runner) emit(ctx context.Context, kind string, report []byte) error {
	if _, err := r.out.Write(report); err != nil {
		return err
	}
	if r.archive == nil {
		return nil
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	key := reportKey(r.prefix, kind, now())
	// The archive must not be lost to a cancelled run
	uploadCtx := context.WithoutCancel(ctx)
	if err := r.archive.Put(uploadCtx, key, report, "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	url, expires, err := r.archive.PresignGet(uploadCtx, key, 0)
	if err != nil {
		r.log.Warn("Report archived without download link", zap.String("key", key), zap.Error(err))
		return nil
	}
	r.log.Info("Report archived",
		zap.String("key", key),
		zap.String("url", url),
		zap.Time("expires_at", expires),
	)
	return nil
}

func reportKey(prefix, kind string, at time.Time) string {
	return path.Join(prefix, fmt.Sprintf("%s-%s.txt", kind, at.UTC().Format("20060102T150405Z")))
}

func writeOutcome(sync *integration.SyncResult) error {
	if sync != nil && sync.FailedCount > 0 {
		return fmt.Errorf("%w: %d of %d", ErrWriteFailures, sync.FailedCount, sync.TotalCount)
	}
	return nil
}
