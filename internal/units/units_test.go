package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAtomicToHuman(t *testing.T) {
	tests := []struct {
		name     string
		atomic   int64
		decimals uint8
		want     string
	}{
		{"one_sol", 1_000_000_000, 9, "1"},
		{"one_usdc", 1_000_000, 6, "1"},
		{"sub_unit", 1, 9, "0.000000001"},
		{"zero_decimals", 42, 0, "42"},
		{"fractional", 1_234_567_890, 9, "1.23456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AtomicToHuman(big.NewInt(tt.atomic), tt.decimals)
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("AtomicToHuman(%d, %d) = %s, want %s", tt.atomic, tt.decimals, got, want)
			}
		})
	}
}

func TestHumanToAtomicFloors(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals uint8
		want     int64
	}{
		{"exact", "1.5", 6, 1_500_000},
		{"floors_dust", "1.9999999999", 6, 1_999_999},
		{"floors_below_one_unit", "0.0000001", 6, 0},
		{"integral", "7", 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HumanToAtomic(decimal.RequireFromString(tt.human), tt.decimals)
			if err != nil {
				t.Fatalf("HumanToAtomic(%s, %d) error: %v", tt.human, tt.decimals, err)
			}
			if got.Int64() != tt.want {
				t.Errorf("HumanToAtomic(%s, %d) = %s, want %d", tt.human, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestHumanToAtomicNegative(t *testing.T) {
	_, err := HumanToAtomic(decimal.RequireFromString("-0.5"), 9)
	if !errors.Is(err, ErrNegativeAtomic) {
		t.Errorf("negative conversion error = %v, want ErrNegativeAtomic", err)
	}
}

func TestRoundTripNeverGains(t *testing.T) {
	// atomic_to_human(human_to_atomic(h)) <= h, with equality iff h*10^d is integral.
	cases := []struct {
		human    string
		decimals uint8
		exact    bool
	}{
		{"1.5", 6, true},
		{"1.23456789", 9, true},
		{"1.9999999999", 6, false},
		{"0.0000001", 6, false},
	}

	for _, tt := range cases {
		h := decimal.RequireFromString(tt.human)
		a, err := HumanToAtomic(h, tt.decimals)
		if err != nil {
			t.Fatalf("HumanToAtomic(%s) error: %v", tt.human, err)
		}
		back := AtomicToHuman(a, tt.decimals)
		if back.GreaterThan(h) {
			t.Errorf("round trip of %s gained value: %s", tt.human, back)
		}
		if tt.exact && !back.Equal(h) {
			t.Errorf("round trip of %s lost value: %s", tt.human, back)
		}
		if !tt.exact && back.Equal(h) {
			t.Errorf("round trip of %s unexpectedly exact", tt.human)
		}
	}
}

func TestParseAtomic(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"123456789", true},
		{"0", true},
		{"", false},
		{"-5", false},
		{"1.5", false},
		{"3xDcE5fRhkTqYrWm1sVuJpNbAaZzQqXxCcVvBbNnMm", false},
	}

	for _, tt := range tests {
		if _, ok := ParseAtomic(tt.in); ok != tt.ok {
			t.Errorf("ParseAtomic(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}
