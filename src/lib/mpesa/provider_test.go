package mpesa

import (
	"connectwork/src/config"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeProvider imitates the three provider endpoints the client talks to.
type fakeProvider struct {
	mu sync.Mutex

	server *httptest.Server

	tokenCalls int
	pushCalls  int
	queryCalls int

	authHeader string
	pushBody   map[string]any
	queryBody  map[string]any

	tokenStatus int
	tokenBody   string
	pushStatus  int
	pushResp    string
	queryStatus int
	queryResp   string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	f := &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"test-token","expires_in":"3599"}`,
		pushStatus:  http.StatusOK,
		pushResp: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",` +
			`"ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing",` +
			`"CustomerMessage":"Success. Request accepted for processing"}`,
		queryStatus: http.StatusOK,
		queryResp: `{"ResponseCode":"0","ResponseDescription":"The service request has been accepted successsfully",` +
			`"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",` +
			`"ResultCode":"0","ResultDesc":"The service request is processed successfully."}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokenCalls++
		f.authHeader = r.Header.Get("Authorization")
		status, body := f.tokenStatus, f.tokenBody
		f.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.pushCalls++
		f.pushBody = body
		status, resp := f.pushStatus, f.pushResp
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.queryCalls++
		f.queryBody = body
		status, resp := f.queryStatus, f.queryResp
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) set(fn func(f *fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type providerCalls struct {
	tokenCalls int
	pushCalls  int
	queryCalls int
	authHeader string
	pushBody   map[string]any
	queryBody  map[string]any
}

func (f *fakeProvider) snapshot() providerCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return providerCalls{
		tokenCalls: f.tokenCalls,
		pushCalls:  f.pushCalls,
		queryCalls: f.queryCalls,
		authHeader: f.authHeader,
		pushBody:   f.pushBody,
		queryBody:  f.queryBody,
	}
}

func testConfig(baseURL string) config.Mpesa {
	return config.Mpesa{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		PassKey:         "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919",
		ShortCode:       config.DefaultShortCode,
		CallbackURL:     config.DefaultCallbackURL,
		Environment:     types.MPESA_SANDBOX,
		CountryCode:     config.DefaultCountryCode,
		BaseURLOverride: baseURL,
		PollInterval:    time.Millisecond,
		PollAttempts:    3,
	}
}

var fixedNow = func() time.Time {
	return time.Date(2016, 2, 16, 16, 56, 27, 0, time.Local)
}

type recorderFunc func(ctx context.Context, t *models.MpesaTransaction) error

func (f recorderFunc) CreateMpesaTransaction(ctx context.Context, t *models.MpesaTransaction) error {
	return f(ctx, t)
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []Reconciliation
	err   error
}

func (r *fakeReconciler) Reconcile(ctx context.Context, rec Reconciliation) (*ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rec)
	if r.err != nil {
		return &ReconcileResult{Success: false, Message: r.err.Error()}, r.err
	}
	return &ReconcileResult{Success: true, Message: "ok", Applied: true}, nil
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = token
	m.ttls[key] = ttl
	return nil
}
