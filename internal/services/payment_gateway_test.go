package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *PayMongoGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewPayMongoGateway(PayMongoConfig{
		SecretKey: "sk_test_123",
		BaseURL:   server.URL,
		Timeout:   2 * time.Second,
	})
}

func TestPayMongoCreatePaymentLink(t *testing.T) {
	var (
		gotPath string
		gotUser string
		gotBody map[string]any
	)
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"link_xyz","type":"link","attributes":{"amount":150000,"checkout_url":"https://pm.link/abc","reference_number":"ABC123","status":"unpaid"}}}`))
	})

	link, err := gateway.CreatePaymentLink(context.Background(), PaymentLinkRequest{
		AmountMinor: 150000,
		Description: "Gym Membership - Monthly",
		Remarks:     "Application ID: 9",
		Metadata:    map[string]string{"application_id": "9"},
	})
	if err != nil {
		t.Fatalf("CreatePaymentLink: %v", err)
	}

	if gotPath != "/links" {
		t.Fatalf("expected /links, got %s", gotPath)
	}
	if gotUser != "sk_test_123" {
		t.Fatalf("expected secret key as basic auth user, got %q", gotUser)
	}
	attrs := gotBody["data"].(map[string]any)["attributes"].(map[string]any)
	if attrs["amount"].(float64) != 150000 {
		t.Fatalf("expected amount 150000, got %v", attrs["amount"])
	}
	if attrs["metadata"].(map[string]any)["application_id"] != "9" {
		t.Fatalf("expected metadata to be forwarded, got %v", attrs["metadata"])
	}
	if link.ID != "link_xyz" || link.CheckoutURL != "https://pm.link/abc" || link.ReferenceNumber != "ABC123" {
		t.Fatalf("unexpected link %+v", link)
	}
}

func TestPayMongoErrorResponseBecomesGatewayError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"parameter_below_minimum","detail":"amount cannot be less than 10000."}]}`))
	})

	_, err := gateway.CreateRefund(context.Background(), RefundRequest{PaymentID: "pay_1", AmountMinor: 1, Reason: "requested_by_customer"})
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %T", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest || gwErr.Op != "create_refund" {
		t.Fatalf("unexpected gateway error %+v", gwErr)
	}
	details, ok := gwErr.Detail.([]PayMongoError)
	if !ok || len(details) != 1 || details[0].Code != "parameter_below_minimum" {
		t.Fatalf("expected provider errors in detail, got %#v", gwErr.Detail)
	}
}

func TestPayMongoTimeoutBecomesGatewayError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	gateway := NewPayMongoGateway(PayMongoConfig{SecretKey: "sk", BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	_, err := gateway.CreatePaymentLink(context.Background(), PaymentLinkRequest{AmountMinor: 100})
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway on timeout, got %v", err)
	}
}

func TestPayMongoArchiveUsesLinkPath(t *testing.T) {
	var gotPath string
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"link_1","type":"link","attributes":{"status":"archived"}}}`))
	})

	if err := gateway.ArchivePaymentLink(context.Background(), "link_1"); err != nil {
		t.Fatalf("ArchivePaymentLink: %v", err)
	}
	if gotPath != "/links/link_1/archive" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}

func TestPayMongoUnconfiguredGatewayFailsFast(t *testing.T) {
	gateway := NewPayMongoGateway(PayMongoConfig{})

	_, err := gateway.CreatePaymentLink(context.Background(), PaymentLinkRequest{AmountMinor: 100})
	if !errors.Is(err, ErrPaymentGateway) || !errors.Is(err, errGatewayNotConfigured) {
		t.Fatalf("expected not configured gateway error, got %v", err)
	}
}

func TestPayMongoBreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	gateway := NewPayMongoGateway(PayMongoConfig{
		SecretKey:       "sk_test_123",
		BaseURL:         server.URL,
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})

	for i := 0; i < 2; i++ {
		if err := gateway.ArchivePaymentLink(context.Background(), "link_1"); !errors.Is(err, ErrPaymentGateway) {
			t.Fatalf("call %d: expected gateway error, got %v", i+1, err)
		}
	}

	err := gateway.ArchivePaymentLink(context.Background(), "link_1")
	if !errors.Is(err, ErrPaymentGateway) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected open breaker to skip the provider, got %d calls", calls)
	}
}

func TestPayMongoBreakerIgnoresClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)
	gateway := NewPayMongoGateway(PayMongoConfig{
		SecretKey:       "sk_test_123",
		BaseURL:         server.URL,
		BreakerFailures: 1,
	})

	for i := 0; i < 3; i++ {
		_ = gateway.ArchivePaymentLink(context.Background(), "link_1")
	}
	if calls != 3 {
		t.Fatalf("expected every request to reach the provider, got %d", calls)
	}
}

func TestPayMongoBreakerIgnoresCancelledCallers(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	gateway := NewPayMongoGateway(PayMongoConfig{
		SecretKey:       "sk_test_123",
		BaseURL:         server.URL,
		Timeout:         2 * time.Second,
		BreakerFailures: 1,
		BreakerCooldown: time.Minute,
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		err := gateway.ArchivePaymentLink(ctx, "link_1")
		cancel()
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i+1, err)
		}
	}
	if state := gateway.breaker.State(); state != gobreaker.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", state)
	}
	if calls != 3 {
		t.Fatalf("expected every request to reach the provider, got %d", calls)
	}
}
