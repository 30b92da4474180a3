package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentra.org/internal/auth"
	"sentra.org/internal/credstore"
	"sentra.org/internal/ratelimit"
	"sentra.org/internal/task"
	"sentra.org/internal/token"
)

type testEnv struct {
	srv   *httptest.Server
	store *credstore.Memory
	auth  *auth.Service
	tasks *task.Registry
}

// newTestEnv wires the full stack behind an httptest server with the seeded
// demo fixtures. rateMax bounds requests per minute per client.
func newTestEnv(t *testing.T, rateMax int) *testEnv {
	t.Helper()

	codec, err := token.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	store := credstore.NewMemory()
	if err := credstore.Seed(context.Background(), store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	svc, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	limiter := ratelimit.New(time.Minute, rateMax)
	registry := task.New(2)

	api := New(Params{
		Auth:    svc,
		Store:   store,
		Tasks:   registry,
		Limiter: limiter,
		Version: "test",
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = registry.Close()
		limiter.Close()
	})

	return &testEnv{srv: srv, store: store, auth: svc, tasks: registry}
}

// request performs one HTTP call and returns the response plus its body.
func (e *testEnv) request(t *testing.T, method, path string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, data
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func decodeBody(t *testing.T, data []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode response %q: %v", data, err)
	}
}

// login performs the credential exchange and fails the test on rejection.
func (e *testEnv) login(t *testing.T, email, password string) tokenPairResponse {
	t.Helper()
	resp, data := e.request(t, http.MethodPost, "/v1/auth/login", loginRequest{Email: email, Password: password}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, resp.StatusCode, data)
	}
	var pair tokenPairResponse
	decodeBody(t, data, &pair)
	return pair
}

func checkReason(t *testing.T, resp *http.Response, data []byte, wantStatus int, wantReason string) {
	t.Helper()
	if resp.StatusCode != wantStatus {
		t.Fatalf("status %d, want %d (body %s)", resp.StatusCode, wantStatus, data)
	}
	var body errorBody
	decodeBody(t, data, &body)
	if body.Reason != wantReason {
		t.Fatalf("reason %q, want %q (body %s)", body.Reason, wantReason, data)
	}
	if body.RequestID == "" {
		t.Fatalf("error body missing request id: %s", data)
	}
}
