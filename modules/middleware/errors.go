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

package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"httperrors/modules/httperr"
	"httperrors/modules/middleware/ratelimit"
)

// HandlerFunc is an http handler that reports failure by returning an error
// instead of writing it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.Handler, sending any returned error through
// WriteError.
func Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(w, r, err)
		}
	})
}

// WriteError is the error pipeline's sink: it logs err and writes its
// envelope. It has the signature of ratelimit.ErrorHandler.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, err)
	httperr.Write(w, err)
}

func logError(r *http.Request, err error) {
	if ratelimit.IsDenied(err) {
		// the rate limiter already logs a sample of its denials
		return
	}
	he := httperr.From(err)
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("url", r.URL.Path),
		slog.Any("error", he),
	}
	switch {
	case he.StatusCode >= http.StatusInternalServerError || !he.Operational:
		slog.ErrorContext(r.Context(), "request failed", attrs...)
	default:
		slog.DebugContext(r.Context(), "request rejected", attrs...)
	}
}

// EchoErrorHandler serializes errors returned from echo handlers and
// middlewares with the same envelope as the net/http pipeline. Echo's own
// errors (unknown route, bad binding) keep their status code.
func EchoErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ee *echo.HTTPError
	var he *httperr.HTTPError
	if !errors.As(err, &he) && errors.As(err, &ee) {
		msg := http.StatusText(ee.Code)
		if s, ok := ee.Message.(string); ok && s != "" {
			msg = s
		}
		err = httperr.New(httperr.WithStatus(ee.Code), httperr.WithMessage(msg), httperr.WithCause(err))
	}

	logError(c.Request(), err)

	env := httperr.Serialize(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(env.StatusCode)
		return
	}
	_ = c.JSON(env.StatusCode, env)
}
