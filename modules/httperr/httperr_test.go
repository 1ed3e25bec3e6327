package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConstructors_DefaultMessages(t *testing.T) {
	cases := []struct {
		name   string
		err    *HTTPError
		status int
		msg    string
	}{
		{"bad request", BadRequest(""), http.StatusBadRequest, MessageBadRequest},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized, MessageUnauthorized},
		{"forbidden", Forbidden(""), http.StatusForbidden, MessageForbidden},
		{"not found", NotFound(""), http.StatusNotFound, MessageNotFound},
		{"conflict", Conflict(""), http.StatusConflict, MessageConflict},
		{"validation", Validation(""), http.StatusUnprocessableEntity, MessageValidation},
		{"too many requests", TooManyRequests(""), http.StatusTooManyRequests, MessageTooManyRequests},
		{"internal", Internal(""), http.StatusInternalServerError, MessageInternal},
		{"query", Query("", nil), http.StatusBadRequest, MessageBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.StatusCode != tc.status {
				t.Fatalf("status: want %d, got %d", tc.status, tc.err.StatusCode)
			}
			if tc.err.Message != tc.msg {
				t.Fatalf("message: want %q, got %q", tc.msg, tc.err.Message)
			}
			if !tc.err.Operational {
				t.Fatalf("expected operational error")
			}
		})
	}
}

func TestNew_InvalidStatusFallsBackTo500(t *testing.T) {
	e := New(WithStatus(200), WithMessage(""))
	if e.StatusCode != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", e.StatusCode)
	}
	if e.Message != MessageInternal {
		t.Fatalf("want default message, got %q", e.Message)
	}
}

func TestQuery_CarriesExtensions(t *testing.T) {
	ext := map[string]any{"code": "GRAPHQL_VALIDATION_ERROR"}
	e := Query("bad selection", ext, WithDetail("path", "user.name"))
	got, ok := e.Details["extensions"].(map[string]any)
	if !ok || got["code"] != "GRAPHQL_VALIDATION_ERROR" {
		t.Fatalf("extensions not carried: %#v", e.Details)
	}
	if e.Details["path"] != "user.name" {
		t.Fatalf("extra detail lost: %#v", e.Details)
	}
}

func TestFrom(t *testing.T) {
	typed := Conflict("dup", WithDetail("field", "email"))
	wrapped := fmt.Errorf("repo: %w", typed)
	if got := From(wrapped); got != typed {
		t.Fatalf("expected typed error from chain")
	}

	plain := errors.New("boom")
	got := From(plain)
	if got.StatusCode != http.StatusInternalServerError || got.Operational {
		t.Fatalf("expected non-operational 500, got %+v", got)
	}
	if !errors.Is(got, plain) {
		t.Fatalf("cause must stay in the chain")
	}
	if From(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestWrite_TypedError(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, TooManyRequests("Too many requests, please try again later", WithDetail("retryAfter", 3)))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("success must be false: %v", body)
	}
	if body["message"] != "Too many requests, please try again later" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	if body["statusCode"] != float64(429) {
		t.Fatalf("unexpected statusCode: %v", body["statusCode"])
	}
	details, _ := body["details"].(map[string]any)
	if details["retryAfter"] != float64(3) {
		t.Fatalf("unexpected details: %v", body["details"])
	}
}

func TestWrite_UntypedErrorDoesNotLeak(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != MessageInternal {
		t.Fatalf("internal message leaked: %v", body["message"])
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("details must be omitted: %v", body)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(NotFound("")); got != http.StatusNotFound {
		t.Fatalf("want 404, got %d", got)
	}
	if got := StatusCode(errors.New("x")); got != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", got)
	}
}
