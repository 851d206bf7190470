// Package address classifies participant address strings.
package address

import (
	"regexp"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"airdrop-reconciler/internal/domain"
)

// evmPattern matches a 0x-prefixed, 20-byte hex address.
var evmPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Kind identifies the chain family an address string belongs to.
type Kind string

const (
	KindEVM     Kind = "evm"
	KindSolana  Kind = "solana"
	KindUnknown Kind = "unknown"
)

// IsValid reports whether s is a well-formed EVM address.
func IsValid(s string) bool {
	return evmPattern.MatchString(s)
}

// Canonical returns the canonical form of a raw address string.
func Canonical(s string) domain.Address {
	return domain.NewAddress(s)
}

// Classify returns the kind of address s looks like.
// Only KindEVM is eligible for rewards; the other kinds are reported in diagnostics.
func Classify(s string) Kind {
	if IsValid(s) {
		return KindEVM
	}
	if isSolanaPubkey(s) {
		return KindSolana
	}
	return KindUnknown
}

// isSolanaPubkey checks that s is base58 of 32 bytes forming a valid ed25519 point.
// Program-derived addresses are off-curve and report false.
func isSolanaPubkey(s string) bool {
	if len(s) < 32 || len(s) > 44 || strings.HasPrefix(s, "0x") {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
