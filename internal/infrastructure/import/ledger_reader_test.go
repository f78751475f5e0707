package csvimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/catalogsync/internal/domain/integration"
)

func TestLedgerReader_DefaultLayout(t *testing.T) {
	ledger := strings.Join([]string{
		"SKU-1,Chair,x,x,x,\"1 535,00€\"",
		"",
		"SKU-2,Table,x,x,x, 29.99 ",
		",,,,,",
		"SHORT,only,three",
		"  SKU-3  ,Lamp,x,x,x,\"1.234,56\"",
		",Nameless,x,x,x,3.00",
	}, "\n")

	core, logs := observer.New(zap.WarnLevel)
	reader, err := NewLedgerReader(DefaultLedgerConfig(), zap.New(core))
	require.NoError(t, err)

	result, err := reader.Read(strings.NewReader(ledger))
	require.NoError(t, err)

	assert.Equal(t, []integration.LedgerEntry{
		{Reference: "SKU-1", RawPrice: "1 535,00€", Line: 1},
		{Reference: "SKU-2", RawPrice: "29.99", Line: 3},
		{Reference: "SKU-3", RawPrice: "1.234,56", Line: 6},
	}, result.Entries)

	require.Equal(t, 2, result.Skipped.Total())
	assert.Equal(t, SkippedRow{Line: 5, Code: SkipShortRow, Reason: "expected at least 6 columns, got 3"}, result.Skipped.Rows()[0])
	assert.Equal(t, SkipMissingRef, result.Skipped.Rows()[1].Code)
	assert.Equal(t, 7, result.Skipped.Rows()[1].Line)
	assert.Equal(t, 1, logs.FilterMessage("Skipping short ledger row").Len())
}

func TestLedgerReader_NonBreakingSpaceIsKept(t *testing.T) {
	reader, err := NewLedgerReader(DefaultLedgerConfig(), nil)
	require.NoError(t, err)

	result, err := reader.Read(strings.NewReader("SKU-1,a,b,c,d,1\u00a0535,00\n"))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "1\u00a0535", result.Entries[0].RawPrice)
}

func TestLedgerReader_CustomLayout(t *testing.T) {
	cfg := LedgerConfig{Delimiter: ';', HasHeader: true, ReferenceColumn: 2, PriceColumn: 0}
	reader, err := NewLedgerReader(cfg, nil)
	require.NoError(t, err)

	result, err := reader.Read(strings.NewReader("price;name;ref\n12,50;Chair;CH-1\n"))
	require.NoError(t, err)
	assert.Equal(t, []integration.LedgerEntry{
		{Reference: "CH-1", RawPrice: "12,50", Line: 2},
	}, result.Entries)
}

func TestLedgerReader_Encoding(t *testing.T) {
	cfg := LedgerConfig{Delimiter: ',', HasHeader: true, ReferenceColumn: 0, PriceColumn: 1}
	reader, err := NewLedgerReader(cfg, nil)
	require.NoError(t, err)

	t.Run("byte order mark is dropped", func(t *testing.T) {
		result, err := reader.Read(strings.NewReader("\xEF\xBB\xBFref,price\nA,1\n"))
		require.NoError(t, err)
		require.Len(t, result.Entries, 1)
		assert.Equal(t, "A", result.Entries[0].Reference)
	})

	t.Run("invalid bytes skip the row", func(t *testing.T) {
		result, err := reader.Read(strings.NewReader("ref,price\n\xff\xfe,1\nB,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []integration.LedgerEntry{{Reference: "B", RawPrice: "2", Line: 3}}, result.Entries)
		require.Equal(t, 1, result.Skipped.Total())
		assert.Equal(t, SkipInvalidEncoding, result.Skipped.Rows()[0].Code)
		assert.Equal(t, 2, result.Skipped.Rows()[0].Line)
	})

	t.Run("empty", func(t *testing.T) {
		for _, content := range []string{"", "\n\n", "\xEF\xBB\xBF"} {
			_, err := reader.Read(strings.NewReader(content))
			assert.ErrorIs(t, err, ErrEmptyFile)
		}
	})
}

func TestLedgerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LedgerConfig
		wantErr bool
	}{
		{"default", DefaultLedgerConfig(), false},
		{"negative column", LedgerConfig{ReferenceColumn: -1, PriceColumn: 5}, true},
		{"same column", LedgerConfig{ReferenceColumn: 2, PriceColumn: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLedgerReader(tt.cfg, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidColumns)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSkipReport(t *testing.T) {
	r := newSkipReport(1)
	assert.Equal(t, "nothing skipped", r.String())

	r.add(2, SkipShortRow, "short")
	r.add(3, SkipShortRow, "short")

	assert.True(t, r.Truncated())
	assert.Len(t, r.Rows(), 1)
	assert.Equal(t, 2, r.Total())
	assert.Equal(t, "line 2: short\n... and 1 more\n", r.String())
}
