// Package paystack wraps the Paystack endpoints used for charges, transfers and dedicated accounts.
package paystack

import (
	"bytes"
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
	defaultBaseURL          = "https://api.paystack.co"
	responseReadLimit int64 = 2048
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	minorUnits           = decimal.NewFromInt(100)
)

// Client talks to the Paystack REST API.
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

// NewClient builds a Paystack client for the given secret key.
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

// envelope is the {status, message, data} wrapper every Paystack response uses.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Recipient is a transfer destination.
type Recipient struct {
	RecipientCode string `json:"recipient_code"`
	Name          string `json:"name"`
}

// CreateRecipientRequest describes a NUBAN transfer recipient.
type CreateRecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// CreateRecipient registers the bank account as a transfer recipient.
func (c *Client) CreateRecipient(ctx context.Context, req CreateRecipientRequest) (*Recipient, error) {
	if strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.BankCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "account number and bank code are required")
	}
	body := map[string]any{
		"type":           "nuban",
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       strings.ToUpper(req.Currency),
	}
	var out Recipient
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer is the gateway view of a payout.
type Transfer struct {
	ID           int64  `json:"id"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

// InitiateTransferRequest moves Amount (major units) to a recipient.
type InitiateTransferRequest struct {
	Amount    decimal.Decimal
	Recipient string
	Reference string
	Reason    string
	Currency  string
}

// InitiateTransfer starts a transfer from the Paystack balance.
func (c *Client) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*Transfer, error) {
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transfer amount must be positive")
	}
	if req.Recipient == "" || req.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "recipient and reference are required")
	}
	body := map[string]any{
		"source":    "balance",
		"amount":    ToMinor(req.Amount),
		"recipient": req.Recipient,
		"reference": req.Reference,
		"reason":    req.Reason,
		"currency":  strings.ToUpper(req.Currency),
	}
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/transfer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransfer fetches the current status of a transfer by reference.
func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*Transfer, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transfer reference is required")
	}
	var out Transfer
	if err := c.do(ctx, http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transaction is the gateway view of a card/bank charge.
type Transaction struct {
	ID        int64
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Raw       map[string]any
}

// VerifyTransaction queries a charge by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transaction reference is required")
	}
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &raw); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(raw)
	var typed struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	}
	if err := json.Unmarshal(payload, &typed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack transaction")
	}
	return &Transaction{
		ID:        typed.ID,
		Reference: typed.Reference,
		Status:    typed.Status,
		Amount:    FromMinor(typed.Amount),
		Currency:  typed.Currency,
		Raw:       raw,
	}, nil
}

// DedicatedAccount is a virtual account assigned to a customer for wallet funding.
type DedicatedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Bank          struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"bank"`
}

// AssignDedicatedAccount creates a dedicated funding account for a customer code.
func (c *Client) AssignDedicatedAccount(ctx context.Context, customer, preferredBank string) (*DedicatedAccount, error) {
	if strings.TrimSpace(customer) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "customer is required")
	}
	body := map[string]any{"customer": customer}
	if preferredBank != "" {
		body["preferred_bank"] = preferredBank
	}
	var out DedicatedAccount
	if err := c.do(ctx, http.MethodPost, "/dedicated_account", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal paystack request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paystack request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "decode paystack response")
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, env.Message), "paystack request failed")
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack data")
	}
	return nil
}

// ToMinor converts a major-unit amount to kobo/pesewas.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnits).Round(0).IntPart()
}

// FromMinor converts kobo/pesewas to major units.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(minorUnits)
}

func truncate(raw []byte) string {
	if int64(len(raw)) > responseReadLimit {
		raw = raw[:responseReadLimit]
	}
	return strings.TrimSpace(string(raw))
}
