package render

import (
	"strings"
	"testing"
	"time"

	"github.com/Armin-kho/satoshi-converter/internal/convert"
	"github.com/Armin-kho/satoshi-converter/internal/items"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/utils"
)

func sampleState() poller.State {
	return poller.State{
		Rates: convert.BuildRates(items.All, map[string]float64{
			"usd": 50000,
			"eur": 46000,
			"jpy": 7450000,
		}),
		LastUpdated: time.Date(2026, 10, 17, 12, 30, 45, 0, time.UTC),
		CycleID:     "c1",
	}
}

func TestCards(t *testing.T) {
	cards := Cards(sampleState(), Options{Digits: utils.DigitsEnglish})
	if len(cards) != len(items.All) {
		t.Fatalf("len(cards) = %d, want %d", len(cards), len(items.All))
	}

	usd := cards[0]
	if usd.Code != "USD" || usd.Price != "$50,000.00" || usd.Sats != "2,000" || !usd.Available {
		t.Errorf("USD card = %+v", usd)
	}
	eur := cards[1]
	if eur.Price != "€46,000.00" || eur.Sats != "2,174" {
		t.Errorf("EUR card = %+v", eur)
	}
	jpy := cards[3]
	if jpy.Code != "JPY" || jpy.Price != "¥7,450,000" || jpy.Sats != "13" {
		t.Errorf("JPY card = %+v", jpy)
	}
	gbp := cards[2]
	if gbp.Price != LoadingText || gbp.Sats != LoadingText || gbp.Available {
		t.Errorf("GBP card = %+v, want loading placeholders", gbp)
	}
}

func TestCards_Persian(t *testing.T) {
	cards := Cards(sampleState(), Options{Digits: utils.DigitsPersian})
	if cards[1].Sats != "۲,۱۷۴" {
		t.Errorf("EUR sats = %q", cards[1].Sats)
	}
}

func TestBuildMessage(t *testing.T) {
	s := sampleState()
	s.Error = poller.FetchFailedMessage

	msg := BuildMessage(s, Options{Digits: utils.DigitsEnglish, Calendar: utils.CalendarGregorian})

	for _, want := range []string{
		Title,
		"🇺🇸 USD · US Dollar",
		"Price: $50,000.00",
		"Sats per 1 USD: 2,000 sats",
		"Sats per 1 GBP: " + LoadingText,
		"⚠️ " + poller.FetchFailedMessage,
		"Last updated: 2026-10-17 12:30:45 UTC",
		Footer,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessage_Initial(t *testing.T) {
	msg := BuildMessage(poller.State{Loading: true}, Options{})
	if !strings.Contains(msg, "⏳ "+LoadingText) {
		t.Errorf("initial message should show loading:\n%s", msg)
	}
	if strings.Contains(msg, "Last updated") {
		t.Errorf("initial message should not show a timestamp:\n%s", msg)
	}
}

func TestLastUpdated(t *testing.T) {
	if got := LastUpdated(poller.State{}, Options{}); got != "" {
		t.Errorf("LastUpdated(zero) = %q, want empty", got)
	}
	got := LastUpdated(sampleState(), Options{Digits: utils.DigitsPersian, Calendar: utils.CalendarGregorian})
	if !strings.HasPrefix(got, "۲۰۲۶-۱۰-۱۷") {
		t.Errorf("LastUpdated(fa) = %q", got)
	}
}

func TestExplainer(t *testing.T) {
	if !strings.Contains(Explainer(), "100,000,000 satoshis") {
		t.Errorf("Explainer() = %q", Explainer())
	}
}
