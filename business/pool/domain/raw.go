package domain

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
)

// RawPool is a shape-tolerant pool description as loaded from a PoolSource.
// Field names and value types vary wildly across sources; the normalizer is
// the only component that interprets it.
type RawPool map[string]any

// Str probes the given keys in order and returns the first non-empty string.
func (r RawPool) Str(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Float probes the given keys in order for a numeric value.
func (r RawPool) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case uint64:
			return float64(n), true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Int probes the given keys in order for an integral value.
func (r RawPool) Int(keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int64:
			return n, true
		case uint64:
			return int64(n), true
		case float64:
			if n == float64(int64(n)) {
				return int64(n), true
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

// BigInt probes the given keys for a non-negative integer of arbitrary size.
// Base58-shaped strings are refused: a vault address is not a balance.
func (r RawPool) BigInt(keys ...string) (*big.Int, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case string:
			if IsBase58Shaped(n) {
				continue
			}
			if i, ok := parseBigInt(n); ok {
				return i, true
			}
		case float64:
			if n >= 0 && n == float64(uint64(n)) {
				return new(big.Int).SetUint64(uint64(n)), true
			}
		case uint64:
			return new(big.Int).SetUint64(n), true
		case int64:
			if n >= 0 {
				return big.NewInt(n), true
			}
		case json.Number:
			if i, ok := parseBigInt(n.String()); ok {
				return i, true
			}
		}
	}
	return nil, false
}

// Has reports whether any of the given keys is present.
func (r RawPool) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := r[k]; ok {
			return true
		}
	}
	return false
}

// Blob returns a lower-cased concatenation of the values of descriptive
// fields, used for substring-based kind detection.
func (r RawPool) Blob(keys ...string) string {
	var sb strings.Builder
	for _, k := range keys {
		if s, ok := r.Str(k); ok {
			sb.WriteString(strings.ToLower(s))
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func parseBigInt(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
