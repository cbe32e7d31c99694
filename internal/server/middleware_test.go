package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestContentTypeWrapper verifies that Content-Type is only set if missing
// when the status code matches the trigger status.
func TestContentTypeWrapper(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		handler         http.HandlerFunc
		triggerStatus   int
		wantStatus      int
		wantContentType string
		wantBody        string
	}{
		{
			name: "SetsContentTypeOnTriggerStatusMissingHeader",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"timeout"}`))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "application/json",
			wantBody:        `{"error":"timeout"}`,
		},
		{
			name: "RespectsExistingContentTypeOnTriggerStatus",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("timeout error"))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "text/plain",
			wantBody:        "timeout error",
		},
		{
			name: "IgnoresNonTriggerStatus",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusOK,
			wantContentType: "", // Not set by wrapper
			wantBody:        "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			wrapper := &contentTypeWrapper{
				ResponseWriter: w,
				contentType:    "application/json",
				triggerStatus:  tt.triggerStatus,
			}

			req := httptest.NewRequest("GET", "/", nil)
			tt.handler(wrapper, req)

			assertRecorderStatus(t, w, tt.wantStatus)

			resp := w.Result()
			defer resp.Body.Close()

			gotCT := resp.Header.Get("Content-Type")
			if tt.wantContentType == "" {
				// Wrapper must NOT force application/json on non-trigger statuses.
				// Content-Type may be sniffed by httptest, but must not be
				// the wrapper's configured type.
				if gotCT == "application/json" {
					t.Errorf(
						"Content-Type = %q; wrapper should not set it for non-trigger status",
						gotCT,
					)
				}
			} else if gotCT != tt.wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotCT, tt.wantContentType)
			}

			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", string(body), tt.wantBody)
			}
		})
	}
}

// TestWithTimeoutTriggersOnSlowHandler verifies that withTimeout produces a
// 503 JSON timeout response when the handler exceeds the configured duration.
func TestWithTimeoutTriggersOnSlowHandler(t *testing.T) {
	t.Parallel()

	srv := testServer(t, 10*time.Millisecond)

	// Handler that blocks well past the timeout.
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		// If we reach here after context cancel, TimeoutHandler
		// already wrote the 503.
	})

	handler := srv.withTimeout(slow)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertTimeoutResponse(t, resp)
}

// TestRoutesTimeoutWiring verifies that API routes are wrapped with timeout
// middleware (positive assertion) and that health and metrics routes are NOT
// wrapped (negative assertion).
func TestRoutesTimeoutWiring(t *testing.T) {
	t.Parallel()

	// Positive: wrapped routes must produce a timeout when
	// the handler is slow. Inject a 100ms handler delay
	// with a 10ms timeout so the handler always exceeds
	// the deadline regardless of platform timer resolution.
	t.Run("WrappedRoutesTimeout", func(t *testing.T) {
		t.Parallel()
		srv := testServerOpts(
			t, 10*time.Millisecond,
			withHandlerDelay(100*time.Millisecond),
		)

		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		wrapped := []struct {
			name string
			path string
		}{
			{"GetStats", "/api/v1/stats"},
			{"TimeSeries", "/api/v1/analytics/timeseries"},
			{"KeyMetrics", "/api/v1/analytics/key-metrics"},
			{"Version", "/api/v1/version"},
		}

		for _, tt := range wrapped {
			t.Run(tt.name, func(t *testing.T) {
				req, _ := http.NewRequest(
					http.MethodGet, ts.URL+tt.path, nil,
				)
				req.Header.Set(workspaceHeader, testWorkspace)
				resp, err := ts.Client().Do(req)
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				defer resp.Body.Close()

				if !isTimeoutResponse(t, resp) {
					t.Errorf(
						"%s: expected timeout 503, got %d",
						tt.path, resp.StatusCode,
					)
				}
			})
		}
	})

	// Negative: unwrapped routes must NOT produce a timeout
	// response even with the same delay configured.
	t.Run("UnwrappedRoutesNoTimeout", func(t *testing.T) {
		t.Parallel()
		srv := testServerOpts(
			t, 10*time.Millisecond,
			withHandlerDelay(100*time.Millisecond),
		)

		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		unwrapped := []struct {
			name       string
			path       string
			wantStatus int
		}{
			{"Health", "/healthz", http.StatusOK},
			{"Metrics", "/metrics", http.StatusOK},
			{"NotFound", "/nope", http.StatusNotFound},
		}

		for _, tt := range unwrapped {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := ts.Client().Get(ts.URL + tt.path)
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				defer resp.Body.Close()

				if isTimeoutResponse(t, resp) {
					t.Errorf(
						"%s: unexpected timeout for unwrapped route",
						tt.path,
					)
				}
				if resp.StatusCode != tt.wantStatus {
					t.Errorf(
						"%s: status = %d, want %d",
						tt.path, resp.StatusCode, tt.wantStatus,
					)
				}
			})
		}
	})
}

func TestHandlers_DeadlineExceeded(t *testing.T) {
	t.Parallel()
	s := testServer(t, 30*time.Second)

	handlers := map[string]http.HandlerFunc{
		"TimeSeries": s.handleTimeSeries,
		"KeyMetrics": s.handleKeyMetrics,
		"TopContent": s.handleTopContent,
		"Sources":    s.handleSources,
		"Comparison": s.handleComparison,
		"Calls":      s.handleCalls,
		"Revenue":    s.handleRevenue,
		"Tasks":      s.handleTasks,
		"GetStats":   s.handleGetStats,
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := expiredCtx(t)
			defer cancel()

			w, req := newTestRequest(t, "")
			req = req.WithContext(WithWorkspace(ctx, testWorkspace))

			// Called directly, bypassing withTimeout: nothing
			// may be written for a context error.
			h(w, req)

			if w.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	s := testServer(t, 5*time.Second)

	w := get(t, s, "/api/v1/version")
	id := w.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("generated request id %q is not a UUID: %v", id, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "client-supplied")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "client-supplied" {
		t.Errorf("request id = %q, want client-supplied", got)
	}
}

func TestLogRequests(t *testing.T) {
	s := testServer(t, 5*time.Second)
	hook := captureLogs(s)

	w := get(t, s, "/api/v1/analytics/timeseries?start=2024-01-01&end=2024-01-02")
	assertRecorderStatus(t, w, http.StatusOK)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry written")
	}
	if entry.Data["status"] != http.StatusOK {
		t.Errorf("status field = %v, want 200", entry.Data["status"])
	}
	if entry.Data["path"] != "/api/v1/analytics/timeseries" {
		t.Errorf("path field = %v", entry.Data["path"])
	}
	if entry.Data["request_id"] != w.Header().Get(requestIDHeader) {
		t.Errorf("request_id field = %v, want %q",
			entry.Data["request_id"], w.Header().Get(requestIDHeader))
	}
}

func TestLogRequestsSilentHandler(t *testing.T) {
	s := testServer(t, 5*time.Second)
	hook := captureLogs(s)

	h := s.logRequests(http.HandlerFunc(
		func(http.ResponseWriter, *http.Request) {},
	))
	w, r := newTestRequest(t, "")
	h.ServeHTTP(w, r)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry written")
	}
	if entry.Data["status"] != http.StatusOK {
		t.Errorf("status field = %v, want 200", entry.Data["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := testServer(t, 5*time.Second)

	get(t, s, "/api/v1/analytics/timeseries")
	get(t, s, "/api/v1/analytics/timeseries")

	w := get(t, s, "/metrics")
	assertRecorderStatus(t, w, http.StatusOK)
	body := w.Body.String()
	want := `leadview_http_requests_total{method="GET",route="/api/v1/analytics/timeseries",status="200"} 2`
	if !strings.Contains(body, want) {
		t.Errorf("metrics output missing %q:\n%s", want, body)
	}
	if !strings.Contains(body, "leadview_http_request_duration_seconds_bucket") {
		t.Error("metrics output missing latency histogram")
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	s := testServer(t, 5*time.Second)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analytics/timeseries", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", workspaceHeader)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
