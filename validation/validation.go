package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLength(field, value string, max int, v Violations) {
	if utf8.RuneCountInString(value) > max {
		v[field] = "too_long"
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
	}
}

// MaxPlaces rejects values with more fractional digits than places.
func MaxPlaces(field string, val decimal.Decimal, places int32, v Violations) {
	if _, ok := v[field]; ok {
		return
	}
	if !val.Equal(val.Truncate(places)) {
		v[field] = "too_precise"
	}
}

// MaxIntDigits rejects values whose integer part needs more than digits
// digits, so they fit a fixed-precision column unchanged.
func MaxIntDigits(field string, val decimal.Decimal, digits int32, v Violations) {
	if _, ok := v[field]; ok {
		return
	}
	if val.Abs().GreaterThanOrEqual(decimal.New(1, digits)) {
		v[field] = "too_large"
	}
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "not_allowed"
}
