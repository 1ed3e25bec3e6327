// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httperr is the typed error hierarchy shared by every HTTP-facing
// component. Handlers and middlewares construct an *HTTPError and hand it to
// the error pipeline, which serializes it with Write.
package httperr

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
)

const (
	MessageBadRequest      = "Bad Request"
	MessageUnauthorized    = "Unauthorized"
	MessageForbidden       = "Forbidden"
	MessageNotFound        = "Not Found"
	MessageConflict        = "Conflict"
	MessageValidation      = "Validation Error"
	MessageTooManyRequests = "Too Many Requests"
	MessageInternal        = "Internal Server Error"
)

// HTTPError carries everything the envelope needs: a client-facing message,
// the status code and optional structured details.
//
// Operational marks errors that are an expected outcome of a request (bad
// input, quota exceeded). Non-operational errors are programming or
// infrastructure faults and get logged at error level.
type HTTPError struct {
	Message     string
	StatusCode  int
	Details     map[string]any
	Operational bool

	cause error
}

type Option func(*HTTPError)

var _ slog.LogValuer = (*HTTPError)(nil)

// New builds an operational 500 and applies opts on top of it.
func New(opts ...Option) *HTTPError {
	e := &HTTPError{
		Message:     MessageInternal,
		StatusCode:  http.StatusInternalServerError,
		Operational: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.StatusCode < 400 || e.StatusCode > 599 {
		e.StatusCode = http.StatusInternalServerError
	}
	if e.Message == "" {
		if t := http.StatusText(e.StatusCode); t != "" {
			e.Message = t
		} else {
			e.Message = "Unknown Error"
		}
	}
	return e
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.StatusCode, e.Message, e.cause)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

// LogValue implements slog.LogValuer.
func (e *HTTPError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("message", e.Message),
		slog.Int("status_code", e.StatusCode),
		slog.Bool("operational", e.Operational),
	}
	if len(e.Details) > 0 {
		attrs = append(attrs, slog.Any("details", e.Details))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

func WithMessage(msg string) Option {
	return func(e *HTTPError) { e.Message = msg }
}

func WithStatus(status int) Option {
	return func(e *HTTPError) { e.StatusCode = status }
}

// WithDetails merges d into the error details.
func WithDetails(d map[string]any) Option {
	return func(e *HTTPError) {
		if len(d) == 0 {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]any, len(d))
		}
		maps.Copy(e.Details, d)
	}
}

func WithDetail(key string, value any) Option {
	return func(e *HTTPError) {
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details[key] = value
	}
}

func WithCause(err error) Option {
	return func(e *HTTPError) { e.cause = err }
}

func WithOperational(operational bool) Option {
	return func(e *HTTPError) { e.Operational = operational }
}

func newWithDefault(status int, fallback, msg string, opts []Option) *HTTPError {
	if msg == "" {
		msg = fallback
	}
	base := []Option{
		WithStatus(status),
		WithMessage(msg),
	}
	return New(append(base, opts...)...)
}

func BadRequest(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusBadRequest, MessageBadRequest, msg, opts)
}

func Unauthorized(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusUnauthorized, MessageUnauthorized, msg, opts)
}

func Forbidden(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusForbidden, MessageForbidden, msg, opts)
}

func NotFound(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusNotFound, MessageNotFound, msg, opts)
}

func Conflict(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusConflict, MessageConflict, msg, opts)
}

func Validation(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusUnprocessableEntity, MessageValidation, msg, opts)
}

func TooManyRequests(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusTooManyRequests, MessageTooManyRequests, msg, opts)
}

func Internal(msg string, opts ...Option) *HTTPError {
	return newWithDefault(http.StatusInternalServerError, MessageInternal, msg, opts)
}

// Query is the error raised by query-gateway resolvers. Gateway-specific
// metadata travels under details.extensions.
func Query(msg string, extensions map[string]any, opts ...Option) *HTTPError {
	base := []Option{WithDetail("extensions", extensions)}
	return newWithDefault(http.StatusBadRequest, MessageBadRequest, msg, append(base, opts...))
}

// From returns the *HTTPError in err's chain, or wraps err in a
// non-operational 500 when there is none.
func From(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return Internal("", WithCause(err), WithOperational(false))
}

// StatusCode reports the status code err would be written with.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return http.StatusInternalServerError
}
