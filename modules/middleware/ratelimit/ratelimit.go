package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"httperrors/modules/httperr"
	rl "httperrors/modules/ratelimit"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	// ISO-8601 with millisecond precision, always rendered in UTC ("Z").
	ResetLayout = "2006-01-02T15:04:05.000Z07:00"

	DeniedMessage = "Too many requests, please try again later"
)

type (
	// ErrorHandler is the surrounding error pipeline the middleware hands
	// typed errors to instead of writing responses itself.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	// DecisionHook observes every decision, e.g. for metrics.
	DecisionHook func(ctx context.Context, key string, d rl.Decision)

	Option func(*middleware)

	middleware struct {
		limiter    rl.RateLimiter
		keyFn      KeyFunc
		errHandler ErrorHandler
		onDecision []DecisionHook

		// denials can come in floods; log a sample of them
		denyLog *rate.Sometimes
	}
)

func WithKeyFunc(fn KeyFunc) Option {
	return func(m *middleware) {
		if fn != nil {
			m.keyFn = fn
		}
	}
}

// WithErrorHandler is only used by the net/http middleware; echo routes
// errors through its own HTTPErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *middleware) {
		if h != nil {
			m.errHandler = h
		}
	}
}

// WithDecisionHook adds h to the hooks run after every decision, in the
// order they were added.
func WithDecisionHook(h DecisionHook) Option {
	return func(m *middleware) {
		if h != nil {
			m.onDecision = append(m.onDecision, h)
		}
	}
}

// WithDenyLogInterval sets the minimum gap between two denial log lines.
func WithDenyLogInterval(d time.Duration) Option {
	return func(m *middleware) { m.denyLog = &rate.Sometimes{Interval: d} }
}

func newMiddleware(limiter rl.RateLimiter, opts []Option) *middleware {
	if limiter == nil {
		panic("ratelimit middleware: nil limiter")
	}
	m := &middleware{
		limiter:    limiter,
		keyFn:      RemoteAddrKeyFunc,
		errHandler: func(w http.ResponseWriter, _ *http.Request, err error) { httperr.Write(w, err) },
		denyLog:    &rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DeniedError is the typed error handed off when d is a denial.
func DeniedError(d rl.Decision) *httperr.HTTPError {
	return httperr.TooManyRequests(DeniedMessage,
		httperr.WithDetail("retryAfter", d.RetryAfterSeconds()),
	)
}

// check resolves the key and charges the request. A non-nil error is always
// a typed internal error ready for the error pipeline.
func (m *middleware) check(r *http.Request) (rl.Decision, error) {
	key, err := resolveKey(m.keyFn, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "rate limit key resolution failed",
			slog.String("middleware", "rate_limiter"),
			slog.String("url", r.URL.Path),
			slog.Any("error", err),
		)
		return rl.Decision{}, httperr.Internal("", httperr.WithCause(err), httperr.WithOperational(false))
	}

	d, err := m.limiter.Decide(r.Context(), rl.Key(key))
	if err != nil {
		// Counter store may be down
		slog.ErrorContext(r.Context(), "rate limit error",
			slog.String("middleware", "rate_limiter"),
			slog.String("url", r.URL.Path),
			slog.Any("error", err),
		)
		return rl.Decision{}, httperr.Internal("", httperr.WithCause(err), httperr.WithOperational(false))
	}

	for _, hook := range m.onDecision {
		hook(r.Context(), key, d)
	}

	if !d.Allowed {
		m.denyLog.Do(func() {
			slog.WarnContext(r.Context(), "rate limited",
				slog.String("middleware", "rate_limiter"),
				slog.String("url", r.URL.Path),
				slog.String("key", key),
				slog.Int64("count", d.Count),
				slog.Int64("limit", d.Limit),
			)
		})
	}
	return d, nil
}

// New wraps limiter as a net/http middleware. Throttling headers are set on
// every decided request; denials and failures go to the error handler and
// stop the chain.
func New(limiter rl.RateLimiter, opts ...Option) func(http.Handler) http.Handler {
	m := newMiddleware(limiter, opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := m.check(r)
			if err != nil {
				m.errHandler(w, r, err)
				return
			}

			writeRateLimitHeaders(w.Header(), d)

			if !d.Allowed {
				w.Header().Set(HeaderRetryAfter, strconv.FormatInt(d.RetryAfterSeconds(), 10))
				m.errHandler(w, r, DeniedError(d))
				return
			}

			// handlers further down may reset headers wholesale,
			// so re-apply before the response is committed
			next.ServeHTTP(&rateLimitHeaderWriter{ResponseWriter: w, decision: d}, r)
		})
	}
}

// IsDenied reports whether err is the error raised for a throttled request.
func IsDenied(err error) bool {
	var he *httperr.HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusTooManyRequests
}

func writeRateLimitHeaders(h http.Header, d rl.Decision) {
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining(), 10))
	h.Set(HeaderReset, d.ResetAt.UTC().Format(ResetLayout))
}

type rateLimitHeaderWriter struct {
	http.ResponseWriter
	decision rl.Decision
	ensured  bool
}

func (w *rateLimitHeaderWriter) ensure() {
	if w.ensured {
		return
	}
	writeRateLimitHeaders(w.ResponseWriter.Header(), w.decision)
	w.ensured = true
}

func (w *rateLimitHeaderWriter) WriteHeader(statusCode int) {
	w.ensure()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *rateLimitHeaderWriter) Write(p []byte) (int, error) {
	w.ensure()
	return w.ResponseWriter.Write(p)
}

func (w *rateLimitHeaderWriter) Flush() {
	w.ensure()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *rateLimitHeaderWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
