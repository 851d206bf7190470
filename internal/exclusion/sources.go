package exclusion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"airdrop-reconciler/internal/storage"
)

// CSVFileSource reads addresses from one column of a CSV file.
type CSVFileSource struct {
	Path string

	// Column is the header name holding addresses, matched case-insensitively.
	// Empty means the file has no header and the first column is used.
	Column string
}

// Name returns the file path.
func (s CSVFileSource) Name() string {
	return s.Path
}

// Addresses reads the configured column. Open, parse and missing-column
// failures are reported as ErrMissingSource.
func (s CSVFileSource) Addresses(_ context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSource, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	col := 0
	if s.Column != "" {
		header, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("%w: read header of %s: %v", ErrMissingSource, s.Path, err)
		}
		col = indexOf(header, s.Column)
		if col < 0 {
			return nil, fmt.Errorf("%w: column %q not found in %s", ErrMissingSource, s.Column, s.Path)
		}
	}

	var out []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMissingSource, s.Path, err)
		}
		if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			out = append(out, rec[col])
		}
	}
	return out, nil
}

// ClusterFileSources returns one headerless CSVFileSource per file matching pattern,
// in lexical order. A pattern with no matches yields no sources.
func ClusterFileSources(pattern string) ([]Source, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob cluster files %q: %w", pattern, err)
	}
	sort.Strings(matches)

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, CSVFileSource{Path: m})
	}
	return sources, nil
}

// ListSource is an in-memory source.
type ListSource struct {
	Label string
	Items []string
}

// Name returns the label.
func (s ListSource) Name() string {
	return s.Label
}

// Addresses returns the items unchanged.
func (s ListSource) Addresses(_ context.Context) ([]string, error) {
	return s.Items, nil
}

// StoreSource reads a previously persisted exclusion list.
type StoreSource struct {
	Store storage.ExclusionStore
	List  string
}

// Name identifies the stored list.
func (s StoreSource) Name() string {
	return "store:" + s.List
}

// Addresses loads the list. An absent list is reported as ErrMissingSource.
func (s StoreSource) Addresses(ctx context.Context) ([]string, error) {
	addrs, err := s.Store.GetByList(ctx, s.List)
	if err != nil {
		return nil, fmt.Errorf("%w: load list %s: %v", ErrMissingSource, s.List, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: list %s is empty", ErrMissingSource, s.List)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
