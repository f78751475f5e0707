// Package csvimport reads supplier purchase ledgers exported as CSV.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/erp/catalogsync/internal/domain/integration"
)

var (
	// ErrEmptyFile is returned for a ledger without any row
	ErrEmptyFile = errors.New("ledger is empty")
	// ErrInvalidColumns is returned for negative or identical column indexes
	ErrInvalidColumns = errors.New("invalid ledger column configuration")
)

// Default ledger layout: no header, reference in the first column and the
// purchase price in the sixth
const (
	DefaultReferenceColumn = 0
	DefaultPriceColumn     = 5
)

// asciiSpace is trimmed from prices; non-breaking spaces are thousand
// separators and stay for the price parser
const asciiSpace = " \t\r\n\v\f"

// LedgerConfig describes the ledger file layout
type LedgerConfig struct {
	Delimiter       rune
	HasHeader       bool
	ReferenceColumn int
	PriceColumn     int
	// MaxErrors bounds the skipped rows kept in the report
	MaxErrors int
}

// DefaultLedgerConfig returns the comma separated, headerless layout
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Delimiter:       ',',
		ReferenceColumn: DefaultReferenceColumn,
		PriceColumn:     DefaultPriceColumn,
		MaxErrors:       100,
	}
}

// Validate checks the column layout
func (c LedgerConfig) Validate() error {
	if c.ReferenceColumn < 0 || c.PriceColumn < 0 {
		return fmt.Errorf("%w: columns must not be negative", ErrInvalidColumns)
	}
	if c.ReferenceColumn == c.PriceColumn {
		return fmt.Errorf("%w: reference and price share column %d", ErrInvalidColumns, c.PriceColumn)
	}
	return nil
}

// LedgerResult is the outcome of a ledger read
type LedgerResult struct {
	Entries []integration.LedgerEntry
	Skipped *SkipReport
}

// LedgerReader turns ledger CSV into integration.LedgerEntry rows. A UTF-8
// byte order mark is dropped. Blank rows are ignored. Rows that cannot hold
// both columns, lack a reference or carry bytes that are not UTF-8 are
// skipped and reported.
type LedgerReader struct {
	config LedgerConfig
	logger *zap.Logger
}

// NewLedgerReader creates a reader for the given layout
func NewLedgerReader(config LedgerConfig, logger *zap.Logger) (*LedgerReader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerReader{config: config, logger: logger}, nil
}

// Read parses every row of r
func (lr *LedgerReader) Read(r io.Reader) (*LedgerResult, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = lr.config.Delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	result := &LedgerResult{
		Entries: []integration.LedgerEntry{},
		Skipped: newSkipReport(lr.config.MaxErrors),
	}
	width := max(lr.config.ReferenceColumn, lr.config.PriceColumn) + 1
	seen, skipHeader := 0, lr.config.HasHeader

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		seen++
		if err != nil {
			line := seen
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			result.Skipped.add(line, SkipMalformedRow, err.Error())
			lr.logger.Warn("Skipping malformed ledger row", zap.Int("line", line), zap.Error(err))
			continue
		}
		line, _ := cr.FieldPos(0)
		if skipHeader {
			skipHeader = false
			continue
		}

		if blank(fields) {
			continue
		}
		if len(fields) < width {
			result.Skipped.add(line, SkipShortRow, fmt.Sprintf("expected at least %d columns, got %d", width, len(fields)))
			lr.logger.Warn("Skipping short ledger row", zap.Int("line", line), zap.Int("columns", len(fields)))
			continue
		}
		if !validText(fields) {
			result.Skipped.add(line, SkipInvalidEncoding, "row is not valid UTF-8")
			lr.logger.Warn("Skipping ledger row with invalid encoding", zap.Int("line", line))
			continue
		}

		reference := strings.TrimSpace(fields[lr.config.ReferenceColumn])
		if reference == "" {
			result.Skipped.add(line, SkipMissingRef, "reference is empty")
			continue
		}
		result.Entries = append(result.Entries, integration.LedgerEntry{
			Reference: reference,
			RawPrice:  strings.Trim(fields[lr.config.PriceColumn], asciiSpace),
			Line:      line,
		})
	}

	if seen == 0 {
		return nil, ErrEmptyFile
	}
	lr.logger.Info("Ledger read",
		zap.Int("entries", len(result.Entries)),
		zap.Int("skipped", result.Skipped.Total()),
	)
	return result, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.Trim(f, asciiSpace) != "" {
			return false
		}
	}
	return true
}

// validText reports whether no field holds the replacement character the
// decoder substitutes for invalid bytes
func validText(fields []string) bool {
	for _, f := range fields {
		if strings.ContainsRune(f, utf8.RuneError) {
			return false
		}
	}
	return true
}
