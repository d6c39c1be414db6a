package fxrates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLatestParsesRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_key") != "key" {
			t.Errorf("access key missing from query")
		}
		if r.URL.Query().Get("base") != "USD" {
			t.Errorf("expected base USD, got %q", r.URL.Query().Get("base"))
		}
		_, _ = w.Write([]byte(`{"success":true,"base":"USD","rates":{"NGN":1520.5,"GHS":15.1,"USD":1}}`))
	}))
	defer srv.Close()

	client, err := NewClient("key", WithFXBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	rates, err := client.Latest(context.Background(), "usd")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got := rates["NGN"].String(); got != "1520.5" {
		t.Fatalf("expected NGN 1520.5, got %s", got)
	}
	if len(rates) != 3 {
		t.Fatalf("expected 3 rates, got %d", len(rates))
	}
}

func TestLatestSurfacesProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"bad key"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient("key", WithFXBaseURL(srv.URL))
	if _, err := client.Latest(context.Background(), "USD"); err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/BTC-USD/spot" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"amount":"64000.50","base":"BTC","currency":"USD"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient("key", WithCryptoBaseURL(srv.URL))
	price, err := client.SpotPrice(context.Background(), "btc", "usd")
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	if price.String() != "64000.5" {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestSpotPriceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := NewClient("key", WithCryptoBaseURL(srv.URL))
	if _, err := client.SpotPrice(context.Background(), "XYZ", "USD"); err == nil {
		t.Fatal("expected status error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected api key error")
	}
}
