package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// ErrS3NotConfigured is returned for s3:// locations when no object storage
// is configured
var ErrS3NotConfigured = errors.New("storage: s3 location given but object storage is not configured")

// Location is a parsed ledger location, either a local path or an S3 object
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// IsS3 reports whether the location names an object
func (l Location) IsS3() bool {
	return l.Key != ""
}

// String renders the location the way it was given
func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts a local path or s3://bucket/key
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("ledger location is required")
	}
	if !strings.HasPrefix(raw, "s3://") {
		return Location{Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid ledger location %q: %w", raw, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("invalid ledger location %q: expected s3://bucket/key", raw)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

// OpenLedger resolves raw to a reader. bucket may be nil when only local
// ledgers are used.
func OpenLedger(ctx context.Context, raw string, bucket *Bucket) (io.ReadCloser, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if loc.IsS3() {
		if bucket == nil {
			return nil, ErrS3NotConfigured
		}
		return bucket.Get(ctx, loc.Bucket, loc.Key)
	}

	f, err := os.Open(loc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, loc.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return f, nil
}
