package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
)

// FetchPrices performs one GET /simple/price for assetID in the given
// currency codes. Codes are sent lowercased and comma-joined.
func (c *Client) FetchPrices(ctx context.Context, assetID string, codes []string) (PriceSnapshot, error) {
	lower := make([]string, 0, len(codes))
	for _, code := range codes {
		lower = append(lower, strings.ToLower(strings.TrimSpace(code)))
	}
	q := url.Values{
		"ids":           {assetID},
		"vs_currencies": {strings.Join(lower, ",")},
	}
	body, err := c.httpGet(ctx, c.baseURL+"/simple/price?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodeSimplePrice(body, assetID)
}

func (c *Client) httpGet(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		fe := &FetchError{Kind: ErrStatus, Status: resp.StatusCode}
		if s := strings.TrimSpace(string(b)); s != "" {
			fe.Err = errors.New(s)
		}
		return nil, fe
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &FetchError{Kind: ErrTransport, Err: err}
	}
	return b, nil
}

// decodeSimplePrice expects exactly one JSON value of the form
// {"<asset>": {"usd": 50000, ...}}. Prices must be JSON numbers; null and
// negative prices count as absent.
func decodeSimplePrice(body []byte, assetID string) (PriceSnapshot, error) {
	var raw map[string]json.RawMessage
	if err := decodeSingle(body, &raw); err != nil {
		return nil, &FetchError{Kind: ErrDecode, Err: fmt.Errorf("%w (%s)", err, snippet(body))}
	}
	assetRaw, ok := raw[assetID]
	if !ok {
		return nil, &FetchError{Kind: ErrDecode, Err: fmt.Errorf("missing %q in response", assetID)}
	}

	var prices map[string]any
	if err := decodeSingle(assetRaw, &prices); err != nil {
		return nil, &FetchError{Kind: ErrDecode, Err: fmt.Errorf("%s: %w", assetID, err)}
	}
	if prices == nil {
		return nil, &FetchError{Kind: ErrDecode, Err: fmt.Errorf("%s: null price object", assetID)}
	}

	snap := PriceSnapshot{}
	for k, v := range prices {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, &FetchError{Kind: ErrDecode, Err: fmt.Errorf("%s.%s: not a number: %v", assetID, k, v)}
		}
		if f < 0 {
			continue
		}
		snap[strings.ToLower(k)] = f
	}
	return snap, nil
}

// decodeSingle decodes b into v with json.Number for numbers and rejects
// anything after the first value.
func decodeSingle(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func toFloat(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
