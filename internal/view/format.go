// Package view builds read-only projections of session and contract state
// for display: formatted amounts, shortened addresses, status labels and
// page models.
package view

import (
	"fmt"
	"math/big"
	"strings"
)

// StroopsPerUnit is the number of stroops in one whole token.
const StroopsPerUnit = 10_000_000

// TruncateAddress shortens addresses longer than 12 characters to the first
// six and last four characters.
func TruncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ShortAddress is the compact form used on the wallet button: first four
// and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// FormatStroops renders a stroop amount as whole units with two decimals.
func FormatStroops(stroops int64) string {
	return new(big.Rat).SetFrac(big.NewInt(stroops), big.NewInt(StroopsPerUnit)).FloatString(2)
}

// ForPercent returns the share of votes in favour, 0 when nobody voted.
func ForPercent(votesFor, votesAgainst uint32) float64 {
	total := uint64(votesFor) + uint64(votesAgainst)
	if total == 0 {
		return 0
	}
	return float64(votesFor) / float64(total) * 100
}

// ParseUnits parses a decimal amount of whole units ("12.5") into stroops.
// At most seven fractional digits are accepted.
func ParseUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 7 {
		return 0, fmt.Errorf("amount %q has more than 7 decimal places", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || strings.ContainsAny(s, "/eE") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(StroopsPerUnit))
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return r.Num().Int64(), nil
}
