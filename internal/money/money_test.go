package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"usd", "USD", true},
		{" EUR ", "EUR", true},
		{"NgN", "NGN", true},
		{"", "", false},
		{"US", "", false},
		{"USDT", "", false},
		{"U$D", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeCurrency(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("NormalizeCurrency(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeCurrency(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("NormalizeCurrency(%q): expected ErrInvalidCurrency, got %v", tc.in, err)
		}
	}
}

func TestQuantizeTruncates(t *testing.T) {
	in := decimal.RequireFromString("1.23456789")
	got := Quantize(in)
	if got.String() != "1.234567" {
		t.Fatalf("expected truncation toward zero, got %s", got)
	}

	neg := Quantize(decimal.RequireFromString("-1.23456789"))
	if neg.String() != "-1.234567" {
		t.Fatalf("negative amounts must also truncate toward zero, got %s", neg)
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(" 42.5000001 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.String() != "42.5" {
		t.Fatalf("expected 42.5, got %s", got)
	}

	if _, err := ParseAmount("not-a-number"); err == nil {
		t.Fatalf("expected parse failure")
	}
}
