package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/webcomputing/assistant-alexa/internal/ctxkey"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
	"github.com/webcomputing/assistant-alexa/internal/service"
)

// dispatcherFunc adapts a function to inbound.Dispatcher.
type dispatcherFunc func(ctx context.Context, req *request.Context, respond inbound.Responder) (string, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, req *request.Context, respond inbound.Responder) (string, error) {
	return f(ctx, req, respond)
}

// echoDispatcher accepts /alexa and answers with the request path and ID.
func echoDispatcher() inbound.Dispatcher {
	return dispatcherFunc(func(ctx context.Context, req *request.Context, respond inbound.Responder) (string, error) {
		if req.Path != "/alexa" {
			return "", service.ErrNoPlatform
		}
		body := fmt.Sprintf(`{"path":%q,"id":%q,"sig":%q}`, req.Path, req.ID, req.Header("signature"))
		return "alexa", respond(ctx, []byte(body))
	})
}

func newTestTransport(t *testing.T, d inbound.Dispatcher, opts ...Option) *HTTPTransport {
	t.Helper()
	return NewHTTPTransport(d, append([]Option{WithLogger(discardLogger())}, opts...)...)
}

func TestWebhook_Dispatches(t *testing.T) {
	transport := newTestTransport(t, echoDispatcher())
	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/alexa", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "req-42")
	req.Header.Set("Signature", "c2ln")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{"path": "/alexa", "id": "req-42", "sig": "c2ln"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	if n := testutil.ToFloat64(transport.Metrics().Dispatches.WithLabelValues("alexa", "ok")); n != 1 {
		t.Errorf("dispatches{alexa,ok} = %v, want 1", n)
	}
}

func TestWebhook_ErrorStatuses(t *testing.T) {
	failing := dispatcherFunc(func(context.Context, *request.Context, inbound.Responder) (string, error) {
		return "alexa", errors.New("boom")
	})

	tests := []struct {
		name       string
		dispatcher inbound.Dispatcher
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"no platform", echoDispatcher(), http.MethodPost, "/google", "{}", http.StatusNotFound},
		{"handler failure", failing, http.MethodPost, "/alexa", "{}", http.StatusInternalServerError},
		{"body too large", echoDispatcher(), http.MethodPost, "/alexa", strings.Repeat("x", maxRequestBodySize+1), http.StatusRequestEntityTooLarge},
		{"wrong method", echoDispatcher(), http.MethodGet, "/alexa", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestTransport(t, tt.dispatcher).Handler()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var e errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("body is not a JSON error: %v", err)
			}
		})
	}
}

func TestWebhook_ErrorAfterResponseKeepsResponse(t *testing.T) {
	d := dispatcherFunc(func(ctx context.Context, _ *request.Context, respond inbound.Responder) (string, error) {
		if err := respond(ctx, []byte(`{"ok":true}`)); err != nil {
			return "alexa", err
		}
		return "alexa", errors.New("late failure")
	})
	rec := httptest.NewRecorder()
	newTestTransport(t, d).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alexa", strings.NewReader("{}")))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Errorf("response = %d %q, want 200 with the platform body", rec.Code, rec.Body.String())
	}
}

func TestWebhook_RequestContext(t *testing.T) {
	var gotID, gotCtxID string
	d := dispatcherFunc(func(ctx context.Context, req *request.Context, respond inbound.Responder) (string, error) {
		gotID = req.ID
		gotCtxID = ctxkey.RequestID(ctx)
		return "alexa", respond(ctx, []byte("{}"))
	})
	rec := httptest.NewRecorder()
	newTestTransport(t, d).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alexa", strings.NewReader("{}")))

	header := rec.Header().Get("X-Request-ID")
	if header == "" || gotID != header || gotCtxID != header {
		t.Errorf("request IDs: header %q, request %q, context %q; want all equal", header, gotID, gotCtxID)
	}
}

func TestWebhook_RateLimit(t *testing.T) {
	transport := newTestTransport(t, echoDispatcher(), WithRateLimit(2, time.Minute))
	handler := transport.Handler()

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/alexa", strings.NewReader("{}"))
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
	if n := testutil.ToFloat64(transport.Metrics().RateLimited); n != 1 {
		t.Errorf("rate_limited_total = %v, want 1", n)
	}

	// Health checks are never limited.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", rec.Code)
	}
}

func TestRouting_Metrics(t *testing.T) {
	handler := newTestTransport(t, echoDispatcher()).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/alexa", strings.NewReader("{}")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "assistant_alexa_dispatches_total") {
		t.Error("/metrics lacks assistant_alexa_dispatches_total")
	}
}

func TestExtractRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.3 "}, "10.0.0.2:1234", "198.51.100.3"},
		{"remote addr", nil, "192.0.2.1:5678", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/alexa", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractRealIP(r); got != tt.want {
				t.Errorf("extractRealIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransport_StartAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	transport := newTestTransport(t, echoDispatcher(), WithAddr(addr), WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- transport.Start(ctx) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.Get("http://" + addr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	client.CloseIdleConnections()
}

func TestTransport_CloseWithoutStart(t *testing.T) {
	if err := newTestTransport(t, echoDispatcher()).Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
