package httpx

import (
	"net/http"
	"time"
)

// RequestObserver receives one observation per served request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Instrument reports every request to obs. A nil observer disables it.
func Instrument(obs RequestObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			obs.ObserveRequest(r.Method, Route(r), wrapped.statusCode, time.Since(start))
		})
	}
}
