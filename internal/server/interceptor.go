package server

import (
	"context"
	"net/http"

	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/service"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestTimeMiddleware logs and records the duration and outcome of every request.
func RequestTimeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		reqTime := timer.Duration()

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(r.Method, route, rec.status, reqTime)
		logrus.Infof("request time: %s %s %d: %v", r.Method, r.URL.Path, rec.status, reqTime)
	})
}

type accountKey struct{}

// requireAccount resolves the X-PLM-Account header against the directory and
// rejects the request when it names no known account.
func (h *handlers) requireAccount(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := h.accounts.ResolveAccount(r.Header.Get(service.AccountHeader))
		if !ok {
			writeError(w, r, service.ErrMissingAccountContext)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acc)))
	}
}

func accountFrom(ctx context.Context) registry.Account {
	acc, _ := ctx.Value(accountKey{}).(registry.Account)
	return acc
}
