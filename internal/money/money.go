// Package money provides fixed-point monetary arithmetic for the POS core.
//
// Amounts are int64 counts of minor currency units (cents). Rates are int64
// basis points (1 bp = 0.01%). Every derived value is produced with integer
// arithmetic and exactly one rounding step, so recomputing a cart any number
// of times yields identical results.
//
// Conversion to a decimal string happens only in Amount.String, which is the
// display boundary.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor currency units.
type Amount int64

// Rate is a proportion in basis points. 800 is 8%.
type Rate int64

// BasisPoints is the denominator of a Rate.
const BasisPoints = 10000

// Cents builds an Amount from whole minor units.
func Cents(c int64) Amount {
	return Amount(c)
}

// Dollars builds an Amount from major and minor units, e.g. Dollars(10, 0).
func Dollars(major, minor int64) Amount {
	if major < 0 {
		return Amount(major*100 - minor)
	}
	return Amount(major*100 + minor)
}

// Percent builds a Rate from a whole percentage.
func Percent(p int64) Rate {
	return Rate(p * 100)
}

// Apply returns a × r rounded half away from zero to the nearest minor unit.
func (r Rate) Apply(a Amount) Amount {
	return Amount(divRound(int64(a)*int64(r), BasisPoints))
}

// String renders the rate as a percentage, e.g. "8.25%".
func (r Rate) String() string {
	whole := int64(r) / 100
	frac := int64(r) % 100
	if frac < 0 {
		frac = -frac
	}
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%02d", frac), "0")
	return fmt.Sprintf("%d.%s%%", whole, s)
}

// Mul returns a × n.
func (a Amount) Mul(n int64) Amount {
	return Amount(int64(a) * n)
}

// Clamp bounds a to [lo, hi].
func (a Amount) Clamp(lo, hi Amount) Amount {
	if a < lo {
		return lo
	}
	if a > hi {
		return hi
	}
	return a
}

// String renders the amount with two decimal places, e.g. "$22.68".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// Parse reads a decimal string such as "10", "10.5" or "10.50" into an Amount.
// More than two fractional digits is an error rather than a silent rounding.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("parse amount %q: expected at most two decimal places", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("parse amount %q: invalid digits", s)
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	var minor int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	v := major*100 + minor
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// allDigits reports whether s holds only ASCII digits. Empty is allowed.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// divRound divides n by d (d > 0) rounding half away from zero.
func divRound(n, d int64) int64 {
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}
