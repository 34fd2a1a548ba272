package items

import "strings"

const (
	// AssetID is the upstream identifier of the priced asset.
	AssetID = "bitcoin"
	// AssetSymbol is used for display only.
	AssetSymbol = "BTC"
	// SubdivisionsPerUnit is the number of satoshis in one bitcoin.
	SubdivisionsPerUnit = 100_000_000
)

// Descriptor is one fiat currency shown in the grid.
type Descriptor struct {
	Code  string
	Name  string
	Glyph string
}

// All is the fixed currency list. Order is display order.
var All = []Descriptor{
	{Code: "USD", Name: "US Dollar", Glyph: "🇺🇸"},
	{Code: "EUR", Name: "Euro", Glyph: "🇪🇺"},
	{Code: "GBP", Name: "British Pound", Glyph: "🇬🇧"},
	{Code: "JPY", Name: "Japanese Yen", Glyph: "🇯🇵"},
	{Code: "CAD", Name: "Canadian Dollar", Glyph: "🇨🇦"},
	{Code: "AUD", Name: "Australian Dollar", Glyph: "🇦🇺"},
	{Code: "CHF", Name: "Swiss Franc", Glyph: "🇨🇭"},
	{Code: "CNY", Name: "Chinese Yuan", Glyph: "🇨🇳"},
}

var byCode map[string]Descriptor

func init() {
	byCode = map[string]Descriptor{}
	for _, d := range All {
		byCode[d.Code] = d
	}
}

// ByCode looks a descriptor up by its code, case-insensitively.
func ByCode(code string) (Descriptor, bool) {
	d, ok := byCode[strings.ToUpper(code)]
	return d, ok
}

// Codes returns the lowercase codes of all descriptors in display order,
// which is the form the upstream source expects.
func Codes() []string {
	out := make([]string, 0, len(All))
	for _, d := range All {
		out = append(out, strings.ToLower(d.Code))
	}
	return out
}
