// Package flutterwave wraps the Flutterwave query endpoints.
package flutterwave

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
	defaultBaseURL          = "https://api.flutterwave.com/v3"
	responseReadLimit int64 = 2048
)

var errSecretKeyRequired = errors.New("flutterwave secret key is required")

// Client is a read-only Flutterwave client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
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

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a Flutterwave client for the given secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(secretKey)
	if trimmed == "" {
		return nil, errSecretKeyRequired
	}
	client := &Client{
		secretKey:  trimmed,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Transaction is the gateway view of a charge. Amount is in major units.
type Transaction struct {
	ID        int64
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Raw       map[string]any
}

// VerifyTransaction looks a charge up by the merchant transaction reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transaction reference is required")
	}
	query := url.Values{}
	query.Set("tx_ref", reference)

	var raw map[string]any
	if err := c.get(ctx, "/transactions/verify_by_reference?"+query.Encode(), &raw); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(raw)
	var typed struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(payload, &typed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode flutterwave transaction")
	}
	return &Transaction{
		ID:        typed.ID,
		Reference: typed.TxRef,
		Status:    typed.Status,
		Amount:    typed.Amount,
		Currency:  typed.Currency,
		Raw:       raw,
	}, nil
}

// Transfer is the gateway view of a payout.
type Transfer struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"complete_message"`
}

// GetTransfer fetches a transfer by id.
func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transfer id is required")
	}
	var out Transfer
	if err := c.get(ctx, "/transfers/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "flutterwave client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build flutterwave request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute flutterwave request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read flutterwave response")
	}
	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		if int64(len(raw)) > responseReadLimit {
			raw = raw[:responseReadLimit]
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "decode flutterwave response")
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Status != "success" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, env.Message), "flutterwave request failed")
	}
	if len(env.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "flutterwave response carried no data")
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode flutterwave data")
	}
	return nil
}
