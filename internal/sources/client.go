package sources

import (
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

const userAgent = "Mozilla/5.0 (compatible; SatoshiConverter/1.0; +https://github.com/Armin-kho/satoshi-converter)"

// Client fetches spot prices from a CoinGecko-compatible endpoint.
// It holds no state between calls: no cache, no retries.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the transport-level timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }
