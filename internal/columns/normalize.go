package columns

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var umlautFolder = strings.NewReplacer(
	"ä", "ae", "Ä", "ae",
	"ö", "oe", "Ö", "oe",
	"ü", "ue", "Ü", "ue",
	"ß", "ss",
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a free-form header name into a comparable token: German
// umlauts become ASCII digraphs, remaining diacritics are stripped via NFKD
// decomposition, and everything but lowercase alphanumerics is dropped.
// "Außentemperatur(℃)" and "Aussentemperatur (°C)" normalize identically.
func Normalize(name string) string {
	s := umlautFolder.Replace(name)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(norm string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(norm, t) {
			return true
		}
	}
	return false
}

// MetersPerSecond reports whether a column name suggests its values are in
// m/s rather than km/h. Wind candidates matching this are converted with a
// 3.6 factor at aggregation time.
func MetersPerSecond(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "km/h") || strings.Contains(lower, "kmh") {
		return false
	}
	if strings.Contains(lower, "m/s") {
		return true
	}
	n := Normalize(name)
	return strings.Contains(n, "ms") && !strings.Contains(n, "kms")
}
