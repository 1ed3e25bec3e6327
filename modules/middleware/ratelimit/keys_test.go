package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteAddrKeyFunc(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:1234", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.1", "10.0.0.1"},
		{"", UnknownKey},
		{"   ", UnknownKey},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		got, err := RemoteAddrKeyFunc(r)
		if err != nil || got != tc.want {
			t.Fatalf("remote %q: want %q, got %q (err=%v)", tc.remote, tc.want, got, err)
		}
	}
}

func TestForwardedForKeyFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.2")
	if got, _ := ForwardedForKeyFunc(r); got != "198.51.100.2" {
		t.Fatalf("want last hop, got %q", got)
	}

	r.Header.Set("X-Forwarded-For", " , ")
	if got, _ := ForwardedForKeyFunc(r); got != "10.0.0.1" {
		t.Fatalf("want remote fallback, got %q", got)
	}
}

func TestHeaderKeyFunc(t *testing.T) {
	fn := HeaderKeyFunc("X-API-Key")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", " tenant-1 ")
	if got, _ := fn(r); got != "tenant-1" {
		t.Fatalf("want tenant-1, got %q", got)
	}

	r.Header.Del("X-API-Key")
	if _, err := resolveKey(fn, r); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("missing header must fail resolution, got %v", err)
	}
}

func TestResolveKey_WrapsFailures(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	cause := errors.New("token expired")

	_, err := resolveKey(func(*http.Request) (string, error) { return "", cause }, r)
	if !errors.Is(err, ErrKeyFunc) || !errors.Is(err, cause) {
		t.Fatalf("want ErrKeyFunc wrapping cause, got %v", err)
	}

	_, err = resolveKey(func(*http.Request) (string, error) { panic("nil map") }, r)
	if !errors.Is(err, ErrKeyFunc) {
		t.Fatalf("panic must surface as ErrKeyFunc, got %v", err)
	}

	key, err := resolveKey(func(*http.Request) (string, error) { return "k", nil }, r)
	if err != nil || key != "k" {
		t.Fatalf("want k, got %q (%v)", key, err)
	}
}

func TestRestHTTPConfig_Validate(t *testing.T) {
	ok := RestHTTPConfig{Window: 1, MaxRequests: 1, KeyStrategy: RemoteIpKeyStrategy, Backend: MemoryBackend}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := []RestHTTPConfig{
		{Window: 0, MaxRequests: 1, Backend: MemoryBackend},
		{Window: 1, MaxRequests: 0, Backend: MemoryBackend},
		{Window: 1, MaxRequests: 1, Backend: "etcd"},
		{Window: 1, MaxRequests: 1, Backend: MemoryBackend, KeyStrategy: "cookie"},
		{Window: 1, MaxRequests: 1, Backend: MemoryBackend, KeyStrategy: HeaderKeyStrategy},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: invalid config accepted: %+v", i, c)
		}
	}
}
