package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DigitsEnglish = "en"
	DigitsPersian = "fa"
)

var persianDigits = map[rune]rune{
	'0': '۰',
	'1': '۱',
	'2': '۲',
	'3': '۳',
	'4': '۴',
	'5': '۵',
	'6': '۶',
	'7': '۷',
	'8': '۸',
	'9': '۹',
}

func ToPersianDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if pr, ok := persianDigits[r]; ok {
			b.WriteRune(pr)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "CA$",
	"AUD": "A$",
	"CHF": "CHF ",
	"CNY": "CN¥",
}

// FractionDigits is the number of decimals shown for a currency.
func FractionDigits(code string) int32 {
	if strings.EqualFold(code, "JPY") {
		return 0
	}
	return 2
}

// FormatPrice renders a price in the given currency, e.g. "$50,000.00" or
// "¥7,450,000".
func FormatPrice(value float64, code string, digits string) string {
	code = strings.ToUpper(code)
	sym, ok := currencySymbols[code]
	if !ok {
		sym = code + " "
	}
	out := sym + formatDecimalWithCommas(decimal.NewFromFloat(value), FractionDigits(code))
	if digits == DigitsPersian {
		out = ToPersianDigits(out)
	}
	return out
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64, digits string) string {
	out := formatIntWithCommas(n)
	if digits == DigitsPersian {
		out = ToPersianDigits(out)
	}
	return out
}

func formatIntWithCommas(n int64) string {
	sign := ""
	s := strconv.FormatInt(n, 10)
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	return sign + groupThousands(s)
}

func formatDecimalWithCommas(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupThousands(intPart)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(s)/3)
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
