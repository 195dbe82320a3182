// Package domain contains the core domain types for the pool context.
package domain

import (
	"github.com/mr-tron/base58"
)

// Mint identifies a token by its base58-encoded 32-byte mint address.
// Equality is byte-wise: two mints are the same token iff the strings match.
type Mint string

// Well-known mints.
const (
	WSOL Mint = "So11111111111111111111111111111111111111112"
	USDC Mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// String returns the base58 form.
func (m Mint) String() string {
	return string(m)
}

// Short returns a truncated display form.
func (m Mint) Short() string {
	s := string(m)
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// IsZero reports whether the mint is unset.
func (m Mint) IsZero() bool {
	return m == ""
}

// addressLen bounds for base58-encoded 32-byte public keys.
const (
	minAddressLen = 32
	maxAddressLen = 44
)

// IsBase58Address reports whether s looks like a Solana account address:
// 32-44 characters of base58 that decode to exactly 32 bytes. This is the
// test that keeps vault addresses from being mistaken for reserve balances.
func IsBase58Address(s string) bool {
	if len(s) < minAddressLen || len(s) > maxAddressLen {
		return false
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

// IsBase58Shaped reports whether s is made solely of base58 alphabet
// characters within address length bounds. Looser than IsBase58Address: it
// does not require a 32-byte payload. Used to flag values that must never be
// parsed as amounts.
func IsBase58Shaped(s string) bool {
	if len(s) < minAddressLen || len(s) > maxAddressLen {
		return false
	}
	_, err := base58.Decode(s)
	return err == nil
}
