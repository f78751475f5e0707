package integration

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// WritePriceReport renders the storefront to ERP comparison: the table of
// differing prices, the one-sided references and the write-back outcome
func WritePriceReport(w io.Writer, result *PriceReconciliationResult) error {
	report := result.Report
	pw := &printer{w: w}

	if !report.HasDifferences() {
		pw.printf("No price difference between the storefront and the ERP (%d matched)\n", report.Matched)
	} else {
		pw.printf("%d price difference(s), %d matched\n\n", len(report.Differences), report.Matched)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		pw.fprintf(tw, "REFERENCE\tSTOREFRONT\tERP\tDELTA\tERP ID\t\n")
		for _, d := range report.Differences {
			pw.fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n",
				d.Reference, d.StorefrontPrice, d.ERPPrice, signed(d.Delta), d.ERPItemID)
		}
		if err := tw.Flush(); err != nil && pw.err == nil {
			pw.err = err
		}
	}

	pw.listWarning("On the storefront but not in the ERP", report.StorefrontOnly)
	pw.listWarning("In the ERP but not on the storefront", report.ERPOnly)
	pw.syncOutcome(result.Sync)
	return pw.err
}

// WritePurchasePriceReport renders the planned purchase amount updates
func WritePurchasePriceReport(w io.Writer, result *PurchasePriceResult) error {
	pw := &printer{w: w}
	pw.printf("%d ERP item(s), %d ledger row(s), %d unreadable price(s)\n",
		result.ItemsScanned, result.LedgerRows, result.UnparseableRows)

	if len(result.Updates) == 0 {
		pw.printf("Every purchase amount is up to date\n")
	} else {
		pw.printf("\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		pw.fprintf(tw, "REFERENCE\tERP ID\tCURRENT\tNEW\tLEDGER LINE\t\n")
		for _, u := range result.Updates {
			pw.fprintf(tw, "%s\t%d\t%s\t%s\t%d\t\n", u.Reference, u.ItemID, u.Current, u.New, u.Line)
		}
		if err := tw.Flush(); err != nil && pw.err == nil {
			pw.err = err
		}
	}

	pw.syncOutcome(result.Sync)
	return pw.err
}

// printer keeps the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	p.fprintf(p.w, format, args...)
}

func (p *printer) fprintf(w io.Writer, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(w, format, args...)
}

func (p *printer) listWarning(title string, refs []string) {
	if len(refs) == 0 {
		return
	}
	p.printf("\n%s (%d): %s\n", title, len(refs), strings.Join(refs, ", "))
}

func (p *printer) syncOutcome(sync *integration.SyncResult) {
	if sync == nil {
		p.printf("\nDry run: nothing was written\n")
		return
	}
	p.printf("\nWrite-back %s: %d written, %d failed\n", sync.Status, sync.SuccessCount, sync.FailedCount)
	for _, f := range sync.FailedItems {
		p.printf("  %s (%s): %s\n", f.Reference, f.Kind, f.ErrorMessage)
	}
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}
