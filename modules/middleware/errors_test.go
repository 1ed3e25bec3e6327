package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"httperrors/modules/httperr"
	"httperrors/modules/middleware/ratelimit"
	rl "httperrors/modules/ratelimit"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) httperr.Envelope {
	t.Helper()
	var env httperr.Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestHandle_WritesTypedError(t *testing.T) {
	h := Handle(func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("lookup: %w", httperr.NotFound("profile not found", httperr.WithDetail("id", "42")))
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profiles/42", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
	env := decode(t, w)
	if env.Message != "profile not found" || env.Details["id"] != "42" || env.Success {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestHandle_NilErrorLeavesResponseAlone(t *testing.T) {
	h := Handle(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return nil
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("want 202, got %d", w.Code)
	}
}

func TestRecovery_DefaultHandlerWritesInternalError(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil pointer")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	if env := decode(t, w); env.Message != httperr.MessageInternal {
		t.Fatalf("panic value leaked: %q", env.Message)
	}
}

func TestEchoErrorHandler(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"typed", httperr.Forbidden("no access"), http.StatusForbidden, "no access"},
		{"echo", echo.NewHTTPError(http.StatusNotFound, "route missing"), http.StatusNotFound, "route missing"},
		{"echo default text", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method Not Allowed"},
		{"plain", errors.New("disk full"), http.StatusInternalServerError, httperr.MessageInternal},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w)

			EchoErrorHandler(tc.err, c)

			if w.Code != tc.status {
				t.Fatalf("want %d, got %d", tc.status, w.Code)
			}
			env := decode(t, w)
			if env.Message != tc.message || env.StatusCode != tc.status {
				t.Fatalf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestEchoErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	w := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w)
	_ = c.String(http.StatusOK, "partial")

	EchoErrorHandler(httperr.Internal(""), c)
	if w.Code != http.StatusOK || w.Body.String() != "partial" {
		t.Fatalf("committed response was modified: %d %q", w.Code, w.Body.String())
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestWriteError_DenialsAreNotLoggedTwice(t *testing.T) {
	logs := captureLogs(t)
	r := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)

	w := httptest.NewRecorder()
	WriteError(w, r, ratelimit.DeniedError(rl.Decision{Limit: 1, Count: 2}))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("denial logged by the error sink: %s", logs.String())
	}

	WriteError(httptest.NewRecorder(), r, errors.New("boom"))
	if !bytes.Contains(logs.Bytes(), []byte("request failed")) {
		t.Fatalf("internal error not logged: %s", logs.String())
	}
}
