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
	"context"
	"net/http"
	"time"

	rl "httperrors/modules/ratelimit"
	"httperrors/modules/telemetry"
)

// Rate limit outcomes attached to request metrics.
const (
	RateLimitNone    = "none"
	RateLimitAllowed = "allowed"
	RateLimitDenied  = "denied"
)

type observationKey struct{}

// observation is shared by the telemetry middleware and the hooks of the
// middlewares it wraps. Handlers run on the request goroutine, so it needs no lock.
type observation struct {
	rateLimit string
}

// ObserveDecision tags the current request's metrics with the rate limit
// outcome. It has the signature of ratelimit.DecisionHook.
func ObserveDecision(ctx context.Context, _ string, d rl.Decision) {
	obs, ok := ctx.Value(observationKey{}).(*observation)
	if !ok {
		return
	}
	if d.Allowed {
		obs.rateLimit = RateLimitAllowed
	} else {
		obs.rateLimit = RateLimitDenied
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Telemetry records request metrics for everything below it, throttled and
// failed requests included. Place it first in the chain so ObserveDecision
// can reach it through the request context.
func Telemetry(metrics *telemetry.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			obs := &observation{rateLimit: RateLimitNone}
			sw := &statusWriter{ResponseWriter: w}

			r = r.WithContext(context.WithValue(r.Context(), observationKey{}, obs))
			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				// nothing written: net/http answers 200
				sw.status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			metrics.RecordRequest(r.Context(), telemetry.RequestSample{
				Method:    r.Method,
				Route:     route,
				Status:    sw.status,
				RateLimit: obs.rateLimit,
				Duration:  time.Since(start),
				Size:      sw.size,
			})
		})
	}
}
