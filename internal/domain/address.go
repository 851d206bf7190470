package domain

import "strings"

// Address is a canonical (lower-cased, trimmed) participant address.
type Address string

// NewAddress canonicalizes a raw address string.
// Validity is not checked here; see package address.
func NewAddress(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}

// String returns the address text.
func (a Address) String() string {
	return string(a)
}

// TotalLabel is the address column value of the synthetic totals row.
const TotalLabel = "TOTAL"
