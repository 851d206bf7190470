package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"airdrop-reconciler/internal/aggregate"
	"airdrop-reconciler/internal/domain"
)

// FormatAmount renders a token amount without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteResult writes the reward table: one row per record, a blank separator row,
// then the TOTAL row. header keeps the input column order; nil uses the layout default.
func WriteResult(w io.Writer, layout Layout, header []string, rs *domain.ResultSet) error {
	if len(header) == 0 {
		header = layout.Header()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range rs.Records {
		if err := cw.Write(row(header, layout, r)); err != nil {
			return fmt.Errorf("write row %s: %w", r.Address, err)
		}
	}

	if err := cw.Write(make([]string, len(header))); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}
	if err := cw.Write(row(header, layout, aggregate.TotalRow(rs))); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// WriteCandidates writes a candidate table in the layout's default column order.
func WriteCandidates(w io.Writer, layout Layout, candidates []domain.CandidateRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(layout.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range candidates {
		err := cw.Write([]string{
			c.Address.String(),
			FormatAmount(c.Waifu),
			FormatAmount(c.Llama),
			FormatAmount(c.BaseTotal),
		})
		if err != nil {
			return fmt.Errorf("write row %s: %w", c.Address, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(header []string, layout Layout, r domain.ReconciledRecord) []string {
	out := make([]string, len(header))
	for i, h := range header {
		switch h {
		case AddressColumn:
			out[i] = r.Address.String()
		case layout.WaifuColumn():
			out[i] = FormatAmount(r.Waifu)
		case layout.LlamaColumn():
			out[i] = FormatAmount(r.Llama)
		case layout.BaseColumn():
			out[i] = FormatAmount(r.BaseTotal)
		default:
			out[i] = r.Extra[h]
		}
	}
	return out
}
