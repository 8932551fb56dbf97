package present

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var trPrinter = message.NewPrinter(language.Turkish)

// FormatNumber groups digits the Turkish way: 1450000 → "1.450.000".
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return trPrinter.Sprintf("%d", int64(math.Round(v)))
}

// FormatCurrency renders an amount in Turkish lira without decimals.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	if math.Round(v) < 0 {
		return "-₺" + FormatNumber(-v)
	}
	return "₺" + FormatNumber(v)
}

// FormatKm renders a mileage such as "85.000 km".
func FormatKm(km int) string {
	return FormatNumber(float64(km)) + " km"
}

var foldTurkish = strings.NewReplacer("ı", "i", "İ", "I")

// slug lowercases s, strips diacritics and replaces every run of other
// characters with a single underscore.
func slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldTurkish.Replace(s))
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}
