package csvimport

import (
	"fmt"
	"strings"
)

// Reasons a ledger row is skipped
const (
	SkipShortRow        = "ERR_LEDGER_SHORT_ROW"
	SkipMissingRef      = "ERR_LEDGER_MISSING_REFERENCE"
	SkipMalformedRow    = "ERR_LEDGER_MALFORMED_ROW"
	SkipInvalidEncoding = "ERR_LEDGER_INVALID_ENCODING"
)

// SkippedRow is a ledger row left out of the result
type SkippedRow struct {
	Line   int    `json:"line"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (s SkippedRow) String() string {
	return fmt.Sprintf("line %d: %s", s.Line, s.Reason)
}

// SkipReport keeps the first limit skipped rows and counts all of them
type SkipReport struct {
	rows  []SkippedRow
	limit int
	total int
}

func newSkipReport(limit int) *SkipReport {
	if limit <= 0 {
		limit = 100
	}
	return &SkipReport{limit: limit}
}

func (r *SkipReport) add(line int, code, reason string) {
	r.total++
	if len(r.rows) < r.limit {
		r.rows = append(r.rows, SkippedRow{Line: line, Code: code, Reason: reason})
	}
}

// Rows returns the kept rows in file order
func (r *SkipReport) Rows() []SkippedRow { return r.rows }

// Total counts every skipped row, kept or not
func (r *SkipReport) Total() int { return r.total }

// Truncated reports whether rows were dropped from the report
func (r *SkipReport) Truncated() bool { return r.total > len(r.rows) }

func (r *SkipReport) String() string {
	if r.total == 0 {
		return "nothing skipped"
	}
	var sb strings.Builder
	for _, row := range r.rows {
		sb.WriteString(row.String())
		sb.WriteByte('\n')
	}
	if r.Truncated() {
		fmt.Fprintf(&sb, "... and %d more\n", r.total-len(r.rows))
	}
	return sb.String()
}
