package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a price in whole currency units (VND has no minor unit).  The
// backend serialises prices as decimals, sometimes quoted, so decoding
// accepts 90000, 90000.00 and "90000" and rounds to the nearest unit.
type Amount int64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid amount %q", s)
	}
	*a = Amount(math.Round(f))
	return nil
}

// String formats the amount with dot thousands separators and a currency
// suffix, e.g. "90.000 ₫".
func (a Amount) String() string {
	n := int64(a)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}
	sb.WriteString(" ₫")
	return sb.String()
}
