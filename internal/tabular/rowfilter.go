package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// RowFilterOptions configures FilterRows.
type RowFilterOptions struct {
	// IgnoreColumns are excluded from the token-column check besides AddressColumn
	// (for example points columns).
	IgnoreColumns []string

	// SeasonColumns must hold at least one non-zero value for a row to be kept.
	SeasonColumns []string
}

// RowFilterStats reports the outcome of FilterRows.
type RowFilterStats struct {
	Original  int
	Removed   int
	Remaining int
}

// FilterRows copies a reward table from r to w, keeping only rows that carry a
// non-zero value in some token column and in some season column. Token columns are
// every column except the address and the ignored ones. Non-numeric cells count as zero.
func FilterRows(r io.Reader, w io.Writer, opts RowFilterOptions) (RowFilterStats, error) {
	var st RowFilterStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return st, fmt.Errorf("read header: %w", err)
	}
	header = trimHeader(header)

	ignored := map[string]bool{AddressColumn: true}
	for _, c := range opts.IgnoreColumns {
		ignored[c] = true
	}

	cols := make(map[string]int, len(header))
	var tokenCols []int
	for i, h := range header {
		cols[h] = i
		if !ignored[h] {
			tokenCols = append(tokenCols, i)
		}
	}

	var seasonCols []int
	for _, name := range opts.SeasonColumns {
		i, ok := cols[name]
		if !ok {
			return st, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		seasonCols = append(seasonCols, i)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return st, fmt.Errorf("write header: %w", err)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("read row: %w", err)
		}
		st.Original++

		if !anyNonZero(rec, tokenCols) || !anyNonZero(rec, seasonCols) {
			st.Removed++
			continue
		}
		if err := cw.Write(rec); err != nil {
			return st, fmt.Errorf("write row: %w", err)
		}
		st.Remaining++
	}

	cw.Flush()
	return st, cw.Error()
}

func anyNonZero(rec []string, idx []int) bool {
	for _, i := range idx {
		if i >= len(rec) {
			continue
		}
		if v, err := ParseAmount(rec[i]); err == nil && v != 0 {
			return true
		}
	}
	return false
}
