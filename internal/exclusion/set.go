// Package exclusion builds the set of addresses barred from the reward table.
package exclusion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"airdrop-reconciler/internal/domain"
)

// ErrMissingSource is returned by a Source that cannot be read.
// Build tolerates it: the source is logged and skipped.
var ErrMissingSource = errors.New("exclusion source missing or unreadable")

// Source yields raw address strings. Entries may hold several comma-joined addresses.
type Source interface {
	Name() string
	Addresses(ctx context.Context) ([]string, error)
}

// Set is an immutable set of canonical addresses.
type Set struct {
	members map[domain.Address]struct{}
}

// NewSet builds a set directly from raw strings.
func NewSet(raw ...string) *Set {
	s := &Set{members: make(map[domain.Address]struct{}, len(raw))}
	for _, r := range raw {
		s.add(r)
	}
	return s
}

// Build unions the addresses of all sources.
// A failing source is logged and skipped, so the set degrades instead of failing the run.
// The only error returned is ctx cancellation.
func Build(ctx context.Context, logger *zap.Logger, sources ...Source) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Set{members: make(map[domain.Address]struct{})}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := src.Addresses(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("skipping exclusion source",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}

		before := s.Len()
		for _, r := range raw {
			s.add(r)
		}
		logger.Debug("loaded exclusion source",
			zap.String("source", src.Name()),
			zap.Int("entries", len(raw)),
			zap.Int("new_addresses", s.Len()-before),
		)
	}

	logger.Info("exclusion set built",
		zap.Int("sources", len(sources)),
		zap.Int("addresses", s.Len()),
	)
	return s, nil
}

// add splits comma-joined entries and inserts each canonical part.
func (s *Set) add(raw string) {
	for _, part := range strings.Split(raw, ",") {
		addr := domain.NewAddress(part)
		if addr == "" {
			continue
		}
		s.members[addr] = struct{}{}
	}
}

// Contains reports whether addr is excluded. addr is canonicalized first.
func (s *Set) Contains(addr domain.Address) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[domain.NewAddress(string(addr))]
	return ok
}

// Len returns the number of distinct addresses.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// Addresses returns all members sorted ascending.
func (s *Set) Addresses() []domain.Address {
	if s == nil {
		return nil
	}
	out := make([]domain.Address, 0, len(s.members))
	for a := range s.members {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Union returns a new set holding the members of s and other.
func (s *Set) Union(other *Set) *Set {
	out := &Set{members: make(map[domain.Address]struct{}, s.Len()+other.Len())}
	for _, src := range []*Set{s, other} {
		if src == nil {
			continue
		}
		for a := range src.members {
			out.members[a] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same addresses.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for a := range s.members {
		if !other.Contains(a) {
			return false
		}
	}
	return true
}

// WriteCSV writes the set as a single "address" column, sorted.
func WriteCSV(w io.Writer, s *Set) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"address"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, a := range s.Addresses() {
		if err := cw.Write([]string{a.String()}); err != nil {
			return fmt.Errorf("write address: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
