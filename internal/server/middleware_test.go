package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/printfarm/gcodemux/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	req := httptest.NewRequest("GET", "/v1/jobs", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if captured == "" {
		t.Error("GetRequestID() returned empty string inside handler")
	}
	if header := rec.Header().Get("X-Request-ID"); header != captured {
		t.Errorf("X-Request-ID header = %q, want %q", header, captured)
	}
}

func TestRequestIDMiddleware_UniquePerRequest(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := RequestIDMiddleware(handler)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		id := rec.Header().Get("X-Request-ID")
		if seen[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		seen[id] = true
	}
}

func TestGetRequestID_Unset(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty string", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "job_id", "job-42")
		AddError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	wrapped := LoggingMiddleware(logger)(handler)

	req := httptest.NewRequest("POST", "/v1/merge", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "request completed") {
		t.Errorf("log output missing completion message: %s", out)
	}
	if !strings.Contains(out, "status=418") {
		t.Errorf("log output missing status: %s", out)
	}
	if !strings.Contains(out, "path=/v1/merge") {
		t.Errorf("log output missing path: %s", out)
	}
	if !strings.Contains(out, "bytes=15") {
		t.Errorf("log output missing response size: %s", out)
	}
	if !strings.Contains(out, "job_id=job-42") {
		t.Errorf("log output missing custom field: %s", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("log output missing error field: %s", out)
	}
}

func TestLoggingMiddleware_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	wrapped := LoggingMiddleware(logger)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("log output missing implicit 200: %s", buf.String())
	}
}

func TestAddLogField_NoMiddleware(t *testing.T) {
	// Must not panic when the logging middleware isn't installed.
	AddLogField(context.Background(), "key", "value")
	AddError(context.Background(), errors.New("orphaned"))
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(5 * time.Second)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if !deadlineSet {
		t.Error("handler context has no deadline")
	}
}

func TestTimeoutMiddleware_ContextCancelled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			t.Error("context was not cancelled within 2s")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(50 * time.Millisecond)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
}

func TestAuthenticator_Validate(t *testing.T) {
	auth := NewAuthenticator([]string{"secret-a", "secret-b"})
	if auth == nil {
		t.Fatal("NewAuthenticator() = nil with non-empty keys")
	}

	if !auth.Validate("secret-a") {
		t.Error("Validate(secret-a) = false, want true")
	}
	if !auth.Validate("secret-b") {
		t.Error("Validate(secret-b) = false, want true")
	}
	if auth.Validate("secret-c") {
		t.Error("Validate(secret-c) = true, want false")
	}
	if auth.Validate("") {
		t.Error("Validate(\"\") = true, want false")
	}
}

func TestNewAuthenticator_Empty(t *testing.T) {
	if auth := NewAuthenticator(nil); auth != nil {
		t.Errorf("NewAuthenticator(nil) = %v, want nil", auth)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{
			name:   "valid bearer",
			header: "Bearer my-key",
			want:   "my-key",
		},
		{
			name:   "lowercase scheme",
			header: "bearer my-key",
			want:   "my-key",
		},
		{
			name:    "missing header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "no scheme",
			header:  "my-key",
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAPIKey(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ExtractAPIKey(%q) error = nil, want error", tt.header)
				}
				return
			}
			if err != nil {
				t.Errorf("ExtractAPIKey(%q) error = %v", tt.header, err)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator([]string{"valid-key"})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := AuthMiddleware(auth)(handler)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid key",
			path:       "/v1/merge",
			authHeader: "Bearer valid-key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid key",
			path:       "/v1/merge",
			authHeader: "Bearer wrong-key",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			path:       "/v1/merge",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "health exempt",
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthMiddleware_NilAuthenticator(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := AuthMiddleware(nil)(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/merge", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d with nil authenticator", rec.Code, http.StatusOK)
	}
}

func TestServer_New(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 9911, RequestTimeout: "10s"}, discardLogger())

	srv.Router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set by middleware stack")
	}
}

func TestServer_RecoversFromPanic(t *testing.T) {
	srv := New(config.ServerConfig{Port: 9912}, discardLogger())

	srv.Router.Get("/explode", func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d after panic", rec.Code, http.StatusInternalServerError)
	}
}

func TestServer_AuthFromConfig(t *testing.T) {
	srv := New(config.ServerConfig{Port: 9913, APIKeys: []string{"k1"}}, discardLogger())
	srv.Router.Get("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/jobs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest("GET", "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHashAPIKey(t *testing.T) {
	h1 := HashAPIKey("some-key")
	h2 := HashAPIKey("some-key")
	if h1 != h2 {
		t.Errorf("HashAPIKey() not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("HashAPIKey() length = %d, want 64 hex chars", len(h1))
	}
	if h1 == HashAPIKey("other-key") {
		t.Error("HashAPIKey() collided for distinct keys")
	}
}
