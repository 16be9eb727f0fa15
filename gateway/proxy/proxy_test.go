package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chaingate/config"
	"chaingate/gateway/auth"
	"chaingate/gateway/meter"
	"chaingate/gateway/networks"
	"chaingate/gateway/sanitize"
	"chaingate/tenant"
)

type countingStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func newCountingStore() *countingStore {
	return &countingStore{counts: make(map[uuid.UUID]int)}
}

func (s *countingStore) ResolveByKey(ctx context.Context, key string) (*tenant.Connection, error) {
	return nil, tenant.ErrNotFound
}

func (s *countingStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id]++
	return nil
}

func (s *countingStore) count(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

type fakeEndpoints struct {
	httpURL    string
	wsURL      string
	configured bool
}

func (f *fakeEndpoints) Configured() bool { return f.configured }

func (f *fakeEndpoints) HTTPEndpoint(networks.Descriptor) string { return f.httpURL }

func (f *fakeEndpoints) WSEndpoint(networks.Descriptor) string { return f.wsURL }

func testSanitizer() *sanitize.Sanitizer {
	return sanitize.New(
		config.ProviderConfig{Name: "fakenode", HTTPHost: "g.fakenode.example", WSHost: "g.fakenode.example"},
		config.BrandConfig{Name: "testgate", Host: "rpc.testgate.example"},
	)
}

type fixture struct {
	router *chi.Mux
	store  *countingStore
	usage  *meter.Meter
	conn   *tenant.Connection
}

func newFixture(t *testing.T, endpoints *fakeEndpoints) *fixture {
	t.Helper()
	store := newCountingStore()
	usage := meter.New(store, nil, nil, 64)
	t.Cleanup(usage.Close)
	conn := &tenant.Connection{ID: uuid.New(), Active: true}

	handler := NewHandler(networks.New(networks.Default()), endpoints, testSanitizer(), usage, nil, nil, nil)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithConnection(r.Context(), conn)))
		})
	})
	router.Post("/rpc/{network}", handler.ServeHTTP)
	return &fixture{router: router, store: store, usage: usage, conn: conn}
}

func (f *fixture) call(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func TestProxySuccessCountsOnce(t *testing.T) {
	var upstreamCalls int
	var gotBody []byte
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	}))
	defer mock.Close()

	f := newFixture(t, &fakeEndpoints{httpURL: mock.URL, configured: true})
	request := `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`
	recorder := f.call(t, "/rpc/ethereum", request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}
	if upstreamCalls != 1 {
		t.Fatalf("upstream called %d times", upstreamCalls)
	}
	if string(gotBody) != request {
		t.Fatalf("body not forwarded verbatim: %s", gotBody)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp["result"] != "0x10" {
		t.Fatalf("hex result mutated: %v", resp["result"])
	}

	if recorder.Header().Get(HeaderNetwork) != "Ethereum" {
		t.Fatalf("network header = %q", recorder.Header().Get(HeaderNetwork))
	}
	if recorder.Header().Get(HeaderChainID) != "1" {
		t.Fatalf("chain id header = %q", recorder.Header().Get(HeaderChainID))
	}
	if recorder.Header().Get(HeaderLatencyMS) == "" {
		t.Fatalf("latency header missing")
	}

	f.usage.Close()
	if got := f.store.count(f.conn.ID); got != 1 {
		t.Fatalf("usage counted %d times, want 1", got)
	}
}

func TestProxyUnknownNetwork(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("upstream must not be dialed for unknown networks")
	}))
	defer mock.Close()

	f := newFixture(t, &fakeEndpoints{httpURL: mock.URL, configured: true})
	recorder := f.call(t, "/rpc/not-a-chain", `{}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	if resp["id"] != nil {
		t.Fatalf("rejection id must be null, got %v", resp["id"])
	}
	f.usage.Close()
	if got := f.store.count(f.conn.ID); got != 0 {
		t.Fatalf("rejected call must not be counted, got %d", got)
	}
}

func TestProxyProviderNotConfigured(t *testing.T) {
	f := newFixture(t, &fakeEndpoints{configured: false})
	recorder := f.call(t, "/rpc/ethereum", `{}`)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestProxyUpstreamRefused(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	mock.Close() // connection refused from here on

	f := newFixture(t, &fakeEndpoints{httpURL: mock.URL, configured: true})
	recorder := f.call(t, "/rpc/ethereum", `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`)

	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := recorder.Body.String()
	if strings.Contains(body, "127.0.0.1") || strings.Contains(strings.ToLower(body), "refused") {
		t.Fatalf("transport error leaked upstream detail: %s", body)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	f.usage.Close()
	if got := f.store.count(f.conn.ID); got != 0 {
		t.Fatalf("transport failure must not be counted, got %d", got)
	}
}

func TestProxyUpstreamProtocolErrorIsSanitizedAndCounted(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"fakenode rate cap","data":"see https://docs.g.fakenode.example"}}`))
	}))
	defer mock.Close()

	f := newFixture(t, &fakeEndpoints{httpURL: mock.URL, configured: true})
	recorder := f.call(t, "/rpc/ethereum", `{"jsonrpc":"2.0","method":"eth_call","params":[],"id":1}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("JSON-RPC level errors are transport successes, status = %d", recorder.Code)
	}
	body := recorder.Body.String()
	if strings.Contains(strings.ToLower(body), "fakenode") {
		t.Fatalf("provider identity leaked: %s", body)
	}
	if !strings.Contains(body, "testgate rate cap") {
		t.Fatalf("error message not sanitized in place: %s", body)
	}
	f.usage.Close()
	if got := f.store.count(f.conn.ID); got != 1 {
		t.Fatalf("protocol errors are billable, counted %d", got)
	}
}

func TestProxyPassesThroughUpstreamStatus(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32005,"message":"capacity"}}`))
	}))
	defer mock.Close()

	f := newFixture(t, &fakeEndpoints{httpURL: mock.URL, configured: true})
	recorder := f.call(t, "/rpc/ethereum", `{}`)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("upstream status not passed through, got %d", recorder.Code)
	}
	f.usage.Close()
	if got := f.store.count(f.conn.ID); got != 1 {
		t.Fatalf("hard upstream responses are still responses, counted %d", got)
	}
}
