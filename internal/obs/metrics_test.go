package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsExposition(t *testing.T) {
	Init()
	InitBuildInfo("test", "deadbeef")

	ObserveAuthAttempt("login", "ok")
	ObserveRateLimitReject()
	ObserveTask("completed")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	Instrument(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("instrumentation changed the response: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape failed: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, metric := range []string{
		"http_requests_total",
		"http_request_duration_seconds",
		"auth_attempts_total",
		"ratelimit_rejects_total",
		"tasks_total",
		"build_info",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("scrape output missing %s", metric)
		}
	}
}
