package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	// versions are sequential and zero padded: 000001, 000002, ...
	versionDigits = 6
)

// Pair is a freshly scaffolded up/down migration
type Pair struct {
	Version  string
	Slug     string
	UpPath   string
	DownPath string
}

// Scaffold writes the next sequential migration pair into dir, creating dir
// when needed. name becomes the lower case slug of the file names.
func Scaffold(dir, name, description string) (*Pair, error) {
	slug := Slug(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	next, err := NextVersion(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%0*d", versionDigits, next)
	base := filepath.Join(dir, version+"_"+slug)
	p := &Pair{Version: version, Slug: slug, UpPath: base + upSuffix, DownPath: base + downSuffix}

	header := fmt.Sprintf("-- %s %s\n-- %s\n", version, name, time.Now().UTC().Format(time.RFC3339))
	if description != "" {
		header += "-- " + description + "\n"
	}
	if err := os.WriteFile(p.UpPath, []byte(header+"\n-- schema change (PostgreSQL)\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", p.UpPath, err)
	}
	if err := os.WriteFile(p.DownPath, []byte(header+"\n-- revert of "+version+"\n"), 0o644); err != nil {
		_ = os.Remove(p.UpPath)
		return nil, fmt.Errorf("failed to write %s: %w", p.DownPath, err)
	}
	return p, nil
}

// Slug lower-cases name and joins its letter and digit runs with '_'
func Slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
		case r == ' ' || r == '-' || r == '_':
			pending = true
		}
	}
	return b.String()
}

// List returns the base names of the migrations in fsys that have an up
// file, in version order. A missing directory lists nothing.
func List(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), upSuffix); ok && !e.IsDir() {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}

// NextVersion returns one past the highest numeric version in fsys
func NextVersion(fsys fs.FS) (uint64, error) {
	names, err := List(fsys)
	if err != nil {
		return 0, err
	}
	var highest uint64
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > highest {
			highest = v
		}
	}
	return highest + 1, nil
}
