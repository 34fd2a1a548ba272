package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/Armin-kho/satoshi-converter/internal/items"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/utils"
)

const (
	Title       = "Satoshi Converter"
	Subtitle    = "Real-time Bitcoin conversion rates in satoshis per currency unit"
	LoadingText = "Loading..."
	Footer      = "Data provided by CoinGecko • Updates every 30 seconds"
)

// Options control number and date formatting.
type Options struct {
	Digits   string // en/fa
	Calendar string // gregorian/jalali
	Location *time.Location
}

// Card is the display form of one CurrencyRate.
type Card struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Glyph string `json:"glyph"`
	Price string `json:"price"`
	Sats  string `json:"sats"`
	// Available is false while either value is the zero sentinel.
	Available bool `json:"available"`
}

// Cards converts the state's rates into display cards, in rate order.
func Cards(s poller.State, opts Options) []Card {
	out := make([]Card, 0, len(s.Rates))
	for _, r := range s.Rates {
		c := Card{
			Code:  r.Code,
			Name:  r.Name,
			Glyph: r.Glyph,
			Price: LoadingText,
			Sats:  LoadingText,
		}
		if r.UnitPrice > 0 {
			c.Price = utils.FormatPrice(r.UnitPrice, r.Code, opts.Digits)
		}
		if r.SmallestUnits > 0 {
			c.Sats = utils.FormatCount(r.SmallestUnits, opts.Digits)
		}
		c.Available = r.UnitPrice > 0 && r.SmallestUnits > 0
		out = append(out, c)
	}
	return out
}

// LastUpdated returns the formatted timestamp, or "" when no fetch has
// succeeded yet.
func LastUpdated(s poller.State, opts Options) string {
	if s.LastUpdated.IsZero() {
		return ""
	}
	out := utils.FormatTimestamp(s.LastUpdated, opts.Calendar, opts.Location)
	if opts.Digits == utils.DigitsPersian {
		out = utils.ToPersianDigits(out)
	}
	return out
}

// BuildMessage renders the state as a plain-text grid for chat clients.
func BuildMessage(s poller.State, opts Options) string {
	var b strings.Builder
	b.WriteString("₿ " + Title + "\n")
	b.WriteString(Subtitle + "\n")

	cards := Cards(s, opts)
	if len(cards) == 0 && s.Loading {
		b.WriteString("\n⏳ " + LoadingText + "\n")
	}
	for _, c := range cards {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s · %s\n", c.Glyph, c.Code, c.Name)
		fmt.Fprintf(&b, "   Price: %s\n", c.Price)
		if c.Sats == LoadingText {
			fmt.Fprintf(&b, "   Sats per 1 %s: %s\n", c.Code, c.Sats)
		} else {
			fmt.Fprintf(&b, "   Sats per 1 %s: %s sats\n", c.Code, c.Sats)
		}
	}

	if s.Error != "" {
		b.WriteString("\n⚠️ " + s.Error + "\n")
	}
	if ts := LastUpdated(s, opts); ts != "" {
		b.WriteString("\n🕒 Last updated: " + ts + "\n")
	}
	b.WriteString("\n" + Footer)
	return b.String()
}

// Explainer is the short help text about the smallest unit.
func Explainer() string {
	return fmt.Sprintf("A satoshi is the smallest unit of Bitcoin, named after its creator Satoshi Nakamoto. "+
		"One %s equals %s satoshis. This converter shows how many satoshis you can get for one unit "+
		"of each major currency, making it easier to understand Bitcoin's purchasing power in familiar terms.",
		items.AssetSymbol, utils.FormatCount(items.SubdivisionsPerUnit, utils.DigitsEnglish))
}
