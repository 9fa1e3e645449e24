package coin

import (
	"errors"
	"testing"

	"racket/internal/game"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		units uint64
		want  string
	}{
		{0, "0"},
		{1, "0.000000001"},
		{game.UnitsPerCoin / 10, "0.1"},
		{2 * game.UnitsPerCoin, "2"},
		{18_446_744_073_709_551_615, "18446744073.709551615"},
	}
	for _, tc := range cases {
		if got := Format(tc.units); got != tc.want {
			t.Fatalf("Format(%d) got %s want %s", tc.units, got, tc.want)
		}
	}
	if got := FormatFixed(1_234_567_891, 4); got != "1.2345" {
		t.Fatalf("FormatFixed got %s want 1.2345", got)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0.05", game.UnitsPerCoin / 20, false},
		{" 2 ", 2 * game.UnitsPerCoin, false},
		{"0.000000001", 1, false},
		{"18446744073.709551615", 18_446_744_073_709_551_615, false},
		{"18446744073.709551616", 0, true},
		{"0.0000000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) got %d want %d", tc.in, got, tc.want)
		}
	}
	if _, err := Parse("99999999999"); !errors.Is(err, game.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestAmountUnmarshalText(t *testing.T) {
	var a Amount
	if err := a.UnmarshalText([]byte("0.01")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Units() != game.UnitsPerCoin/100 {
		t.Fatalf("got %d want %d", a.Units(), game.UnitsPerCoin/100)
	}
	if a.String() != "0.01" {
		t.Fatalf("string got %s", a.String())
	}
}
