// Package stats indexes remote stats records for per-address lookup.
package stats

import (
	"errors"
	"fmt"
	"sort"

	"airdrop-reconciler/internal/domain"
)

// ErrConflictingDuplicate is returned by Index under RejectConflict when two records
// for the same address carry different effective totals.
var ErrConflictingDuplicate = errors.New("conflicting duplicate remote records")

// DuplicatePolicy decides which record is kept when an address appears more than once.
type DuplicatePolicy string

const (
	// LastWriteWins keeps the record seen last.
	LastWriteWins DuplicatePolicy = "last-write-wins"
	// KeepHigher keeps the record with the larger effective total.
	// A record without any figure never replaces one that has a figure.
	KeepHigher DuplicatePolicy = "keep-higher"
	// RejectConflict fails indexing when duplicates disagree.
	RejectConflict DuplicatePolicy = "reject-conflict"
)

// ParsePolicy converts a config value to a DuplicatePolicy. Empty means LastWriteWins.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", LastWriteWins:
		return LastWriteWins, nil
	case KeepHigher, RejectConflict:
		return DuplicatePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Resolver maps canonical addresses to their remote record. Read-only after Index.
type Resolver struct {
	records    map[domain.Address]domain.RemoteStatRecord
	duplicates int
}

// Index builds a Resolver keyed by canonical address.
// Records with an empty address are skipped.
func Index(records []domain.RemoteStatRecord, policy DuplicatePolicy) (*Resolver, error) {
	if policy == "" {
		policy = LastWriteWins
	}

	r := &Resolver{records: make(map[domain.Address]domain.RemoteStatRecord, len(records))}
	for _, rec := range records {
		key := domain.NewAddress(string(rec.Address))
		if key == "" {
			continue
		}
		rec.Address = key

		prev, seen := r.records[key]
		if !seen {
			r.records[key] = rec
			continue
		}
		r.duplicates++

		switch policy {
		case LastWriteWins:
			r.records[key] = rec
		case KeepHigher:
			if higher(rec, prev) {
				r.records[key] = rec
			}
		case RejectConflict:
			if !sameFigure(rec, prev) {
				return nil, fmt.Errorf("%w: %s", ErrConflictingDuplicate, key)
			}
		default:
			return nil, fmt.Errorf("unknown duplicate policy %q", policy)
		}
	}
	return r, nil
}

// Lookup returns the record of addr, canonicalizing it first.
func (r *Resolver) Lookup(addr domain.Address) (domain.RemoteStatRecord, bool) {
	if r == nil {
		return domain.RemoteStatRecord{}, false
	}
	rec, ok := r.records[domain.NewAddress(string(addr))]
	return rec, ok
}

// Len returns the number of indexed addresses.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Duplicates returns how many records collided with an earlier one during Index.
func (r *Resolver) Duplicates() int {
	if r == nil {
		return 0
	}
	return r.duplicates
}

// Ambiguous returns the addresses whose record has neither revisedTokens nor totalTokens, sorted.
func (r *Resolver) Ambiguous() []domain.Address {
	if r == nil {
		return nil
	}
	var out []domain.Address
	for addr, rec := range r.records {
		if _, ok := rec.EffectiveTotal(); !ok {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func higher(candidate, current domain.RemoteStatRecord) bool {
	c, cok := candidate.EffectiveTotal()
	p, pok := current.EffectiveTotal()
	if !cok {
		return false
	}
	if !pok {
		return true
	}
	return c > p
}

func sameFigure(a, b domain.RemoteStatRecord) bool {
	av, aok := a.EffectiveTotal()
	bv, bok := b.EffectiveTotal()
	return aok == bok && av == bv
}
