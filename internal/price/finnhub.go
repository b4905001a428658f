package price

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultFinnhubURL = "https://finnhub.io/api/v1"

// Finnhub looks up stock quotes from the Finnhub REST API.
type Finnhub struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFinnhub(baseURL, apiKey string, timeout time.Duration) *Finnhub {
	if baseURL == "" {
		baseURL = DefaultFinnhubURL
	}
	return &Finnhub{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type finnhubQuote struct {
	Current decimal.Decimal `json:"c"`
}

type finnhubProfile struct {
	Name string `json:"name"`
}

// CurrentPrice returns the last traded price. Unknown symbols report a zero
// quote, which is treated as unavailable like any transport failure.
func (f *Finnhub) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	var quote finnhubQuote
	if err := f.get(ctx, "/quote", symbol, &quote); err != nil {
		log.WithField("symbol", symbol).Warnf("❌ Failed to fetch quote: %v", err)
		return decimal.Zero, false
	}
	if !quote.Current.IsPositive() {
		log.WithField("symbol", symbol).Debug("No price data found")
		return decimal.Zero, false
	}
	return quote.Current, true
}

// CompanyName returns the registered company name of symbol.
func (f *Finnhub) CompanyName(ctx context.Context, symbol string) (string, bool) {
	var profile finnhubProfile
	if err := f.get(ctx, "/stock/profile2", symbol, &profile); err != nil {
		log.WithField("symbol", symbol).Debugf("Failed to fetch company profile: %v", err)
		return "", false
	}
	return profile.Name, profile.Name != ""
}

func (f *Finnhub) get(ctx context.Context, path, symbol string, out any) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "could not decode response")
	}
	return nil
}
