// Package coin converts between base units and decimal coin strings.
package coin

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"racket/internal/game"
)

const decimals = 9

var errPrecision = errors.New("more than 9 decimal places")

// Amount is a quantity of base units that parses from a coin string such as "0.05".
type Amount uint64

func (a Amount) Units() uint64 {
	return uint64(a)
}

func (a Amount) String() string {
	return Format(uint64(a))
}

func (a *Amount) UnmarshalText(text []byte) error {
	units, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = Amount(units)
	return nil
}

// Decimal returns units as an exact coin value.
func Decimal(units uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -decimals)
}

// Format renders units as coins without trailing zeros.
func Format(units uint64) string {
	return Decimal(units).String()
}

// FormatFixed renders units as coins with exactly places decimals, truncating the rest.
func FormatFixed(units uint64, places int32) string {
	return Decimal(units).Truncate(places).StringFixed(places)
}

// Parse reads a non-negative coin string into base units.
func Parse(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse coin amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse coin amount %q: negative", s)
	}
	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("parse coin amount %q: %w", s, errPrecision)
	}
	n := units.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("parse coin amount %q: %w", s, game.ErrOverflow)
	}
	return n.Uint64(), nil
}
