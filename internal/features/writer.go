package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Header returns the table header for vectors of up to days days.
func Header(days int) []string {
	h := make([]string, 0, 2+2*days)
	h = append(h, "address", "days_active")
	for i := 1; i <= days; i++ {
		h = append(h, fmt.Sprintf("llama_day%d", i), fmt.Sprintf("waifu_day%d", i))
	}
	return h
}

// Write emits one row per vector in the given order. Shorter vectors are
// padded with zeros to the longest one.
func Write(w io.Writer, vectors []Vector) error {
	maxDays := 0
	for _, v := range vectors {
		if len(v.Days) > maxDays {
			maxDays = len(v.Days)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(maxDays)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	width := 2 * maxDays
	for _, v := range vectors {
		row := make([]string, 0, 2+width)
		row = append(row, v.Address.String(), strconv.Itoa(v.DaysActive()))
		for _, f := range v.Flags() {
			row = append(row, strconv.Itoa(f))
		}
		for len(row) < 2+width {
			row = append(row, "0")
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", v.Address, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
