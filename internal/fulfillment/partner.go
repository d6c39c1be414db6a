package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

const partnerBodyReadLimit int64 = 1024

var errPartnerURLRequired = errors.New("partner base url is required")

// PartnerHandler vends utility products (data, airtime, tv, electricity) through a VTU partner API.
type PartnerHandler struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string
}

// PartnerOption configures optional partner behavior.
type PartnerOption func(*PartnerHandler)

// WithPartnerHTTPClient overrides the default HTTP client.
func WithPartnerHTTPClient(client *http.Client) PartnerOption {
	return func(p *PartnerHandler) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithPartnerTimeout sets the request timeout on the default client.
func WithPartnerTimeout(timeout time.Duration) PartnerOption {
	return func(p *PartnerHandler) {
		if timeout > 0 {
			p.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewPartnerHandler builds a handler against baseURL.
func NewPartnerHandler(baseURL, apiKey string, opts ...PartnerOption) (*PartnerHandler, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errPartnerURLRequired
	}
	h := &PartnerHandler{
		httpClient: &http.Client{Timeout: 45 * time.Second},
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		name:       "vtu",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

type vendRequest struct {
	Reference   string `json:"reference"`
	ProductCode string `json:"product_code"`
	Service     string `json:"service"`
	Amount      string `json:"amount"`
	Quantity    int    `json:"quantity"`
	Customer    string `json:"customer"`
}

type vendResponse struct {
	Status  string         `json:"status"`
	ID      string         `json:"id"`
	Tokens  []string       `json:"tokens"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Fulfill vends the order. Transport failures return an error and leave the order
// eligible for the next sweep; a partner rejection returns StatusInvalid.
func (h *PartnerHandler) Fulfill(ctx context.Context, req Request) (Outcome, error) {
	if !req.Product.Type.IsUtility() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "partner handles utility products only")
	}
	customer := ""
	if req.User != nil {
		customer = req.User.ID
	}
	if v, ok := req.Order.FulfillResponse["customer"].(string); ok && v != "" {
		customer = v
	}
	code := req.Product.PartnerCode
	if code == "" {
		code = req.Product.ID
	}

	body, err := json.Marshal(vendRequest{
		Reference:   req.Order.ID,
		ProductCode: code,
		Service:     req.Product.Type.String(),
		Amount:      req.Order.Amount.StringFixed(2),
		Quantity:    req.Order.Quantity,
		Customer:    customer,
	})
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeUnexpected, err, "encode vend request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/vend", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeUnexpected, err, "build vend request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "partner request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, partnerBodyReadLimit))
		return Outcome{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("partner status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var payload vendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode partner response")
	}

	out := Outcome{
		FulfillID: payload.ID,
		Tokens:    payload.Tokens,
		Response:  payload.Data,
		Partner:   h.name,
	}
	if out.Response == nil {
		out.Response = map[string]any{}
	}
	if payload.Message != "" {
		out.Response["message"] = payload.Message
	}

	switch strings.ToLower(strings.TrimSpace(payload.Status)) {
	case "success", "successful", "delivered":
		out.Status = enums.OrderStatusProcessed
	case "pending", "processing":
		out.Status = enums.OrderStatusProcessing
	case "failed", "invalid", "rejected":
		out.Status = StatusInvalid
	default:
		if resp.StatusCode >= http.StatusBadRequest {
			out.Status = StatusInvalid
			break
		}
		return Outcome{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unknown partner status %q", payload.Status))
	}
	return out, nil
}
