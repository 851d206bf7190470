package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"airdrop-reconciler/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("required column missing")

// ErrDuplicateAddress marks a candidate row whose address already appeared.
var ErrDuplicateAddress = errors.New("duplicate address")

// RowError describes an input row that could not be parsed and was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// CandidateTable is a parsed candidate table.
type CandidateTable struct {
	Header     []string
	Candidates []domain.CandidateRecord
	Skipped    []RowError
	// Duplicates holds rows dropped because their canonical address was
	// already read. The first occurrence is kept.
	Duplicates []RowError
}

// ReadCandidates parses a candidate table. Empty numeric cells count as zero.
// Rows with unparsable or non-finite numbers are skipped and reported in Skipped.
func ReadCandidates(r io.Reader, layout Layout) (*CandidateTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = trimHeader(header)

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	for _, required := range layout.Header() {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, required)
		}
	}

	table := &CandidateTable{Header: header}
	seen := make(map[domain.Address]int)
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		c, err := parseCandidate(rec, header, cols, layout)
		if err != nil {
			table.Skipped = append(table.Skipped, RowError{Line: line, Err: err})
			continue
		}
		if c.Address != "" {
			if first, dup := seen[c.Address]; dup {
				table.Duplicates = append(table.Duplicates, RowError{
					Line: line,
					Err:  fmt.Errorf("%w: %s (first on line %d)", ErrDuplicateAddress, c.Address, first),
				})
				continue
			}
			seen[c.Address] = line
		}
		table.Candidates = append(table.Candidates, c)
	}
	return table, nil
}

// ReadCandidatesFile parses the candidate table at path.
func ReadCandidatesFile(path string, layout Layout) (*CandidateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	defer f.Close()
	return ReadCandidates(f, layout)
}

func parseCandidate(rec, header []string, cols map[string]int, layout Layout) (domain.CandidateRecord, error) {
	cell := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	c := domain.CandidateRecord{Address: domain.NewAddress(cell(AddressColumn))}

	var err error
	if c.Waifu, err = ParseAmount(cell(layout.WaifuColumn())); err != nil {
		return c, fmt.Errorf("%s: %w", layout.WaifuColumn(), err)
	}
	if c.Llama, err = ParseAmount(cell(layout.LlamaColumn())); err != nil {
		return c, fmt.Errorf("%s: %w", layout.LlamaColumn(), err)
	}
	if c.BaseTotal, err = ParseAmount(cell(layout.BaseColumn())); err != nil {
		return c, fmt.Errorf("%s: %w", layout.BaseColumn(), err)
	}

	for i, h := range header {
		if layout.known(h) || i >= len(rec) {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[h] = rec[i]
	}
	return c, nil
}

// ErrNonFiniteAmount is returned for NaN and infinite amounts.
var ErrNonFiniteAmount = errors.New("amount is not a finite number")

// ParseAmount parses a token amount. Empty means zero.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonFiniteAmount, s)
	}
	return v, nil
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}
