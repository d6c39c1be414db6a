package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalorders "github.com/angelmondragon/brandpay-backend/internal/orders"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/pkg/auth"
	"github.com/angelmondragon/brandpay-backend/pkg/config"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryRedis struct {
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubOrders struct {
	checkouts int
}

func (s *stubOrders) CreateOrUpdateOrder(_ context.Context, in internalorders.CheckoutInput) (*internalorders.CheckoutResult, error) {
	s.checkouts++
	return &internalorders.CheckoutResult{Success: true, Code: "paid", Msg: "Payment successful", ReferenceID: "ref-1"}, nil
}

func (s *stubOrders) Cancel(context.Context, string, string) (internalorders.RefundResult, error) {
	return internalorders.RefundResult{}, nil
}

func (s *stubOrders) ConfirmPayment(context.Context, string) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrders) GetByReference(_ context.Context, userID, reference string) ([]models.Order, error) {
	return []models.Order{{ID: "o1", UserID: userID, ReferenceID: reference}}, nil
}

func (s *stubOrders) List(_ context.Context, userID string, _ enums.OrderStatus, page docstore.Page) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{Orders: []models.Order{}, Meta: docstore.Meta{Page: page.Page, Limit: page.Limit}}, nil
}

type stubWithdrawals struct{}

func (stubWithdrawals) Withdraw(_ context.Context, in payments.WithdrawInput) (payments.Result, error) {
	return payments.Result{Debited: true, Payment: &models.Payment{ID: "pay-1", Amount: in.Amount}}, nil
}

type stubTrigger struct {
	targets []string
}

func (s *stubTrigger) Fire(_ context.Context, target string) {
	s.targets = append(s.targets, target)
}

type harness struct {
	handler http.Handler
	cfg     *config.Config
	orders  *stubOrders
	trigger *stubTrigger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "brandpay", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{
			WithdrawalWindow: time.Minute,
			WithdrawalLimit:  1,
			CheckoutWindow:   time.Minute,
			CheckoutLimit:    10,
		},
	}
	h := &harness{cfg: cfg, orders: &stubOrders{}, trigger: &stubTrigger{}}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	h.handler = NewRouter(cfg, logg, stubPinger{}, newMemoryRedis(), h.orders, stubWithdrawals{}, h.trigger,
		[]string{"always", "rates", "settlement"})
	return h
}

func (h *harness) token(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.MintAccessToken(h.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: "buyer-1", BrandID: "brand-1", Role: role})
	require.NoError(t, err)
	return token
}

func (h *harness) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", "", nil).Code)
	rec := h.do(http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/orders", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/orders", h.token(t, auth.RoleUser), "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/orders/ref-1", h.token(t, auth.RoleUser), "", nil).Code)
}

func TestCheckoutReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, auth.RoleUser)
	body := `{"cart":[{"productId":"p1","quantity":1}]}`
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := h.do(http.MethodPost, "/api/v1/orders", token, body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := h.do(http.MethodPost, "/api/v1/orders", token, body, headers)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, h.orders.checkouts)
}

func TestWithdrawalsAreRateLimited(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, auth.RoleUser)
	body := `{"amount":"5000","currency":"NGN","bank":{"accountNumber":"0123456789","accountName":"Ada","bankCode":"058"}}`

	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/v1/withdrawals", token, body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/api/v1/withdrawals", token, body, nil).Code)
	assert.Equal(t, []string{"settlement"}, h.trigger.targets)
}

func TestAdminCronRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/admin/v1/cron/settlement", h.token(t, auth.RoleUser), "", nil).Code)
	assert.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/api/admin/v1/cron/settlement", h.token(t, auth.RoleAdmin), "", nil).Code)
	assert.Equal(t, []string{"settlement"}, h.trigger.targets)
}
