// Package tabular reads and writes the reward tables exchanged as CSV.
package tabular

import "fmt"

// AddressColumn is the header of the address column in reward tables.
const AddressColumn = "Address"

// Layout names the columns of a season's reward table.
type Layout struct {
	Season string
}

// NewLayout returns the layout of a season label such as "S2".
func NewLayout(season string) Layout {
	return Layout{Season: season}
}

// WaifuColumn is the header of the waifu reward column.
func (l Layout) WaifuColumn() string {
	return fmt.Sprintf("%s waifu_reward_tokens", l.Season)
}

// LlamaColumn is the header of the llama reward column.
func (l Layout) LlamaColumn() string {
	return fmt.Sprintf("%s llama_reward_tokens", l.Season)
}

// BaseColumn is the header of the base-token total column.
func (l Layout) BaseColumn() string {
	return fmt.Sprintf("%s Total Base Tokens", l.Season)
}

// Header returns the default column order.
func (l Layout) Header() []string {
	return []string{AddressColumn, l.WaifuColumn(), l.LlamaColumn(), l.BaseColumn()}
}

// known reports whether name is one of the layout's typed columns.
func (l Layout) known(name string) bool {
	switch name {
	case AddressColumn, l.WaifuColumn(), l.LlamaColumn(), l.BaseColumn():
		return true
	}
	return false
}
