// Package fxrates fetches fiat exchange rates and crypto spot prices.
package fxrates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

const (
	defaultFXBaseURL           = "https://api.exchangeratesapi.io/v1"
	defaultCryptoBaseURL       = "https://api.coinbase.com/v2"
	responseReadLimit    int64 = 1024
)

var errAPIKeyRequired = errors.New("exchange rates api key is required")

// Client reads rates from exchangeratesapi.io and crypto spot prices from a Coinbase-style API.
type Client struct {
	httpClient    *http.Client
	fxBaseURL     string
	cryptoBaseURL string
	apiKey        string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithFXBaseURL overrides the fiat rates endpoint.
func WithFXBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.fxBaseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithCryptoBaseURL overrides the crypto spot price endpoint.
func WithCryptoBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.cryptoBaseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds a rates client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	client := &Client{
		apiKey:        trimmedKey,
		fxBaseURL:     defaultFXBaseURL,
		cryptoBaseURL: defaultCryptoBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Latest returns units of each currency per one unit of base.
func (c *Client) Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "exchange rates client not configured")
	}
	query := url.Values{}
	query.Set("access_key", c.apiKey)
	if base != "" {
		query.Set("base", strings.ToUpper(base))
	}

	var apiResp struct {
		Success bool                       `json:"success"`
		Base    string                     `json:"base"`
		Rates   map[string]decimal.Decimal `json:"rates"`
		Error   *struct {
			Code int    `json:"code"`
			Type string `json:"type"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := c.getJSON(ctx, c.fxBaseURL+"/latest?"+query.Encode(), &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch exchange rates")
	}
	if !apiResp.Success {
		reason := "unknown error"
		if apiResp.Error != nil {
			reason = strings.TrimSpace(apiResp.Error.Type + " " + apiResp.Error.Info)
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "exchange rates request rejected: "+reason)
	}
	if len(apiResp.Rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "exchange rates response carried no rates")
	}
	return apiResp.Rates, nil
}

// SpotPrice returns the price of one unit of symbol quoted in currency.
func (c *Client) SpotPrice(ctx context.Context, symbol, currency string) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "exchange rates client not configured")
	}
	pair := fmt.Sprintf("%s-%s", strings.ToUpper(symbol), strings.ToUpper(currency))

	var apiResp struct {
		Data struct {
			Amount   decimal.Decimal `json:"amount"`
			Base     string          `json:"base"`
			Currency string          `json:"currency"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/prices/%s/spot", c.cryptoBaseURL, url.PathEscape(pair)), &apiResp); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch spot price "+pair)
	}
	if !apiResp.Data.Amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "spot price for "+pair+" is not positive")
	}
	return apiResp.Data.Amount, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
