package integration

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// PlatformCode Tests
// ---------------------------------------------------------------------------

func TestPlatformCode_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		code     PlatformCode
		expected bool
	}{
		{"Shopify valid", PlatformCodeShopify, true},
		{"Sellsy valid", PlatformCodeSellsy, true},
		{"Invalid code", PlatformCode("INVALID"), false},
		{"Empty code", PlatformCode(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.IsValid())
		})
	}
}

func TestPlatformCode_DisplayName(t *testing.T) {
	tests := []struct {
		code     PlatformCode
		expected string
	}{
		{PlatformCodeShopify, "Shopify"},
		{PlatformCodeSellsy, "Sellsy"},
		{PlatformCode("UNKNOWN"), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.DisplayName())
		})
	}
}

// ---------------------------------------------------------------------------
// Failure classification Tests
// ---------------------------------------------------------------------------

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected FailureKind
	}{
		{"nil", nil, ""},
		{"rate limited", ErrRateLimited, FailureRateLimited},
		{"wrapped rate limited", fmt.Errorf("%w: after 3 attempts", ErrRateLimited), FailureRateLimited},
		{"validation", fmt.Errorf("%w: title taken", ErrValidationRejected), FailureValidationRejected},
		{"not found", ErrResourceNotFound, FailureResourceNotFound},
		{"dependency", fmt.Errorf("%w: no location", ErrDependencyUnavailable), FailureDependencyUnavailable},
		{"not configured", ErrPlatformNotConfigured, FailureDependencyUnavailable},
		{"other", errors.New("boom"), FailureUnclassified},
		{"invalid response", ErrInvalidResponse, FailureUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyFailure(tt.err))
		})
	}
}

// ---------------------------------------------------------------------------
// SyncResult Tests
// ---------------------------------------------------------------------------

func TestSyncResult_Finish(t *testing.T) {
	now := time.Now()

	t.Run("noop when nothing attempted", func(t *testing.T) {
		var r SyncResult
		r.Finish(now)
		assert.Equal(t, SyncStatusNoop, r.Status)
		assert.Equal(t, now, r.SyncedAt)
	})

	t.Run("success", func(t *testing.T) {
		var r SyncResult
		r.RecordSuccess()
		r.RecordSuccess()
		r.Finish(now)
		assert.Equal(t, SyncStatusSuccess, r.Status)
		assert.Equal(t, 2, r.TotalCount)
		assert.Equal(t, 2, r.SuccessCount)
	})

	t.Run("partial", func(t *testing.T) {
		var r SyncResult
		r.RecordSuccess()
		r.RecordFailure("42", "SKU-1", fmt.Errorf("%w: too many requests", ErrRateLimited))
		r.Finish(now)
		assert.Equal(t, SyncStatusPartial, r.Status)
		assert.Len(t, r.FailedItems, 1)
		assert.Equal(t, "42", r.FailedItems[0].ItemID)
		assert.Equal(t, "SKU-1", r.FailedItems[0].Reference)
		assert.Equal(t, FailureRateLimited, r.FailedItems[0].Kind)
	})

	t.Run("failed", func(t *testing.T) {
		var r SyncResult
		r.RecordFailure("1", "A", errors.New("x"))
		r.Finish(now)
		assert.Equal(t, SyncStatusFailed, r.Status)
		assert.True(t, r.Status.IsValid())
	})
}
