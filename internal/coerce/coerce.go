// Package coerce turns dirty, locale-formatted cell values into numbers.
// Logger exports mix comma decimals, unit suffixes and a handful of
// sentinel strings for missing readings; none of that should ever abort a
// query, so parse failures collapse to null.
package coerce

import (
	"database/sql"
	"strconv"
	"strings"
)

var sentinels = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"---":  true,
	"n/a":  true,
	"na":   true,
	"null": true,
	"nan":  true,
}

// Float converts a raw cell or API value to a nullable float64.
// Comma decimals, the Unicode minus sign and trailing units ("12 mm",
// "23,5 °C") are tolerated. Anything unparseable is null, never an error.
func Float(raw string) sql.NullFloat64 {
	s := strings.TrimSpace(raw)
	if sentinels[strings.ToLower(s)] {
		return sql.NullFloat64{}
	}

	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, "−", "-") // Unicode minus

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return sql.NullFloat64{}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Ptr is Float for callers that work with pointer-valued aggregates.
func Ptr(raw string) *float64 {
	if v := Float(raw); v.Valid {
		f := v.Float64
		return &f
	}
	return nil
}
