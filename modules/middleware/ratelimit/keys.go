package ratelimit

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// UnknownKey is shared by every request whose origin cannot be determined,
// so all unattributable traffic shares one quota.
const UnknownKey = "unknown"

var (
	ErrEmptyKey = errors.New("ratelimit: key function returned an empty key")
	ErrKeyFunc  = errors.New("ratelimit: key function failed")
)

// KeyFunc extracts from a HTTP request an identifier such as remote IP, API key, etc.
// Its result is used verbatim; two callers mapped to the same key share a quota.
type KeyFunc func(*http.Request) (string, error)

// RemoteAddrKeyFunc keys requests by the host part of the peer address.
func RemoteAddrKeyFunc(r *http.Request) (string, error) {
	return remoteHost(r), nil
}

// ForwardedForKeyFunc uses the last X-Forwarded-For hop, i.e. the address
// appended by the closest proxy. Only sensible behind a proxy that sets it.
func ForwardedForKeyFunc(r *http.Request) (string, error) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
			return ip, nil
		}
	}
	return remoteHost(r), nil
}

// HeaderKeyFunc keys requests by the value of header, e.g. an API key.
// A missing header resolves to an empty key, which the middleware rejects.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) (string, error) {
		return strings.TrimSpace(r.Header.Get(header)), nil
	}
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return UnknownKey
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}

// resolveKey runs fn and turns failures, panics included, into errors.
func resolveKey(fn KeyFunc, r *http.Request) (key string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrKeyFunc, rec)
		}
	}()

	key, err = fn(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyFunc, err)
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}
