package model

import (
	"bytes"
	"math"
	"strconv"
)

// Value is an optional indicator reading. Valid is false when the indicator
// has not accumulated enough history at that index.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps a present value. A non-finite reading, such as an SMA whose
// window sum overflowed, is absent.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// MarshalJSON encodes an absent or non-finite value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.V, 'f', -1, 64), nil
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Series is an indicator output aligned index-for-index with its input bars.
type Series []Value

// NewSeries returns a series of n absent values.
func NewSeries(n int) Series { return make(Series, n) }

// At returns the value at index i and whether it is present.
// Out-of-range indices report absent.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) || !s[i].Valid {
		return 0, false
	}
	return s[i].V, true
}

// Last returns the final value of the series.
func (s Series) Last() (float64, bool) { return s.At(len(s) - 1) }

// Present counts the indices holding a value.
func (s Series) Present() int {
	n := 0
	for _, v := range s {
		if v.Valid {
			n++
		}
	}
	return n
}
