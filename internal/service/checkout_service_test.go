package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"duka/internal/domain"
	"duka/internal/models"
	"duka/pkg/audit"
	"duka/pkg/mpesa"
)

type fakeStore struct {
	created []*models.Payment
	updates int
}

func (s *fakeStore) Create(p *models.Payment) error {
	s.created = append(s.created, p)
	return nil
}

func (s *fakeStore) Update(p *models.Payment) error {
	s.updates++
	return nil
}

func fullEnv() map[string]string {
	return map[string]string{
		mpesa.EnvConsumerKey:    "key",
		mpesa.EnvConsumerSecret: "secret",
		mpesa.EnvShortCode:      "174379",
		mpesa.EnvPasskey:        "passkey",
		mpesa.EnvCallbackURL:    "https://duka.example.com/callback",
	}
}

// gatewayFake serves both the token and push endpoints and counts calls.
type gatewayFake struct {
	srv        *httptest.Server
	tokenCalls int64
	pushCalls  int64
	tokenFn    http.HandlerFunc
	pushFn     http.HandlerFunc
	lastPush   mpesa.STKPushRequest
}

func newGatewayFake(t *testing.T) *gatewayFake {
	t.Helper()
	g := &gatewayFake{}
	g.tokenFn = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}
	g.pushFn = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "0", "CheckoutRequestID": "ws_CO_123"})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&g.tokenCalls, 1)
		g.tokenFn(w, r)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&g.pushCalls, 1)
		json.NewDecoder(r.Body).Decode(&g.lastPush)
		g.pushFn(w, r)
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func newTestService(t *testing.T, gw *gatewayFake, env map[string]string) (*CheckoutService, *fakeStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := audit.Open(path)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { trail.Close() })
	store := &fakeStore{}
	gateway := mpesa.NewClient(gw.srv.URL, time.Second, trail.Append)
	svc := NewCheckoutService(gateway, store, trail)
	svc.getenv = func(k string) string { return env[k] }
	return svc, store, path
}

func auditLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit trail: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestInitiatePaymentSuccess(t *testing.T) {
	gw := newGatewayFake(t)
	svc, store, path := newTestService(t, gw, fullEnv())

	out := svc.InitiatePayment(context.Background(), 7, "+254712345678", 1500.5)
	if !out.Success || out.Error != "" {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if gw.tokenCalls != 1 || gw.pushCalls != 1 {
		t.Fatalf("token=%d push=%d calls, want 1/1", gw.tokenCalls, gw.pushCalls)
	}
	if gw.lastPush.PhoneNumber != "254712345678" {
		t.Errorf("transmitted phone = %q", gw.lastPush.PhoneNumber)
	}
	if gw.lastPush.Amount != 1501 {
		t.Errorf("transmitted amount = %d, want 1501", gw.lastPush.Amount)
	}
	if !strings.Contains(gw.lastPush.TransactionDesc, "1501") {
		t.Errorf("description %q does not contain rounded amount", gw.lastPush.TransactionDesc)
	}

	if len(store.created) != 1 {
		t.Fatalf("payment records created = %d", len(store.created))
	}
	rec := store.created[0]
	if rec.Status != domain.PaymentStatusPending {
		t.Errorf("record status = %q, want PENDING (acceptance is not confirmation)", rec.Status)
	}
	if rec.CheckoutRequestID != "ws_CO_123" {
		t.Errorf("record CheckoutRequestID = %q", rec.CheckoutRequestID)
	}
	if rec.AmountCents != 150100 {
		t.Errorf("record amount cents = %d", rec.AmountCents)
	}

	lines := auditLines(t, path)
	if len(lines) < 2 {
		t.Fatalf("audit lines = %d, want at least 2", len(lines))
	}
	if !strings.Contains(lines[0], "attempt started") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], "accepted") {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
}

func TestInitiatePaymentMissingConfig(t *testing.T) {
	gw := newGatewayFake(t)
	env := fullEnv()
	delete(env, mpesa.EnvPasskey)
	svc, store, path := newTestService(t, gw, env)

	out := svc.InitiatePayment(context.Background(), 7, "254712345678", 100)
	if out.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.Error, mpesa.EnvPasskey) {
		t.Errorf("error %q should name the missing variable", out.Error)
	}
	if gw.tokenCalls != 0 || gw.pushCalls != 0 {
		t.Fatalf("HTTP calls made despite missing config: token=%d push=%d", gw.tokenCalls, gw.pushCalls)
	}
	if len(store.created) != 0 {
		t.Errorf("payment record created despite config fault")
	}
	lines := auditLines(t, path)
	if len(lines) < 2 {
		t.Fatalf("audit lines = %d, want at least 2", len(lines))
	}
	// The fault is logged by name only; secrets from the valid fields must
	// not appear either.
	for _, line := range lines {
		if strings.Contains(line, "secret") {
			t.Errorf("audit line leaks a credential value: %q", line)
		}
	}
}

func TestInitiatePaymentTokenEndpointFails(t *testing.T) {
	gw := newGatewayFake(t)
	gw.tokenFn = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"errorMessage":"internal"}`))
	}
	svc, _, path := newTestService(t, gw, fullEnv())

	out := svc.InitiatePayment(context.Background(), 7, "254712345678", 100)
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error != msgAuthUnavailable {
		t.Errorf("error = %q, want generic auth message", out.Error)
	}
	if gw.pushCalls != 0 {
		t.Fatalf("push endpoint called after failed token fetch")
	}
	// Raw gateway reply must be in the trail for diagnosis.
	found := false
	for _, line := range auditLines(t, path) {
		if strings.Contains(line, "errorMessage") && strings.Contains(line, "internal") {
			found = true
		}
	}
	if !found {
		t.Error("raw token-endpoint failure not persisted to audit trail")
	}
}

func TestInitiatePaymentTokenNetworkError(t *testing.T) {
	gw := newGatewayFake(t)
	deadGw := newGatewayFake(t)
	deadGw.srv.Close()
	svc, _, _ := newTestService(t, deadGw, fullEnv())

	out := svc.InitiatePayment(context.Background(), 7, "254712345678", 100)
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error != msgAuthUnavailable {
		t.Errorf("error = %q, want generic auth message", out.Error)
	}
	if gw.pushCalls != 0 || deadGw.pushCalls != 0 {
		t.Fatal("push endpoint called after network fault")
	}
}

func TestInitiatePaymentRejected(t *testing.T) {
	gw := newGatewayFake(t)
	gw.pushFn = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "1", "errorMessage": "Insufficient funds"})
	}
	svc, store, _ := newTestService(t, gw, fullEnv())

	out := svc.InitiatePayment(context.Background(), 7, "254712345678", 250)
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error != "Insufficient funds" {
		t.Errorf("error = %q, want gateway message", out.Error)
	}
	if len(store.created) != 1 || store.created[0].Status != domain.PaymentStatusFailed {
		t.Errorf("payment record not marked FAILED: %+v", store.created)
	}
	if store.created[0].FailureReason != "Insufficient funds" {
		t.Errorf("failure reason = %q", store.created[0].FailureReason)
	}
}

func TestInitiatePaymentTransportFaultIsGeneric(t *testing.T) {
	gw := newGatewayFake(t)
	gw.pushFn = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>bad gateway</html>`))
	}
	svc, _, path := newTestService(t, gw, fullEnv())

	out := svc.InitiatePayment(context.Background(), 7, "254712345678", 250)
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error != msgUnexpected {
		t.Errorf("error = %q, want generic message (no internal detail)", out.Error)
	}
	if strings.Contains(out.Error, "html") || strings.Contains(out.Error, "unmarshal") {
		t.Errorf("internal detail leaked to caller: %q", out.Error)
	}
	// Detail is logged, not surfaced.
	found := false
	for _, line := range auditLines(t, path) {
		if strings.Contains(line, "bad gateway") {
			found = true
		}
	}
	if !found {
		t.Error("transport fault detail missing from audit trail")
	}
}

func TestEveryAttemptWritesAtLeastTwoAuditEntries(t *testing.T) {
	cases := []struct {
		name string
		prep func(gw *gatewayFake, env map[string]string)
	}{
		{"success", func(gw *gatewayFake, env map[string]string) {}},
		{"missing config", func(gw *gatewayFake, env map[string]string) {
			delete(env, mpesa.EnvConsumerKey)
		}},
		{"token fault", func(gw *gatewayFake, env map[string]string) {
			gw.tokenFn = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}},
		{"push fault", func(gw *gatewayFake, env map[string]string) {
			gw.pushFn = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newGatewayFake(t)
			env := fullEnv()
			tc.prep(gw, env)
			svc, _, path := newTestService(t, gw, env)
			svc.InitiatePayment(context.Background(), 7, "254712345678", 50)
			lines := auditLines(t, path)
			if len(lines) < 2 {
				t.Fatalf("audit lines = %d, want at least 2", len(lines))
			}
			if !strings.Contains(lines[0], "attempt started") {
				t.Errorf("first entry = %q, want attempt start", lines[0])
			}
			last := lines[len(lines)-1]
			if !strings.Contains(last, "accepted") && !strings.Contains(last, "failed") {
				t.Errorf("last entry = %q, want terminal outcome", last)
			}
		})
	}
}
