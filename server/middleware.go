package server

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"djc/config"
)

type middleware func(http.Handler) http.Handler

// bearerAuth requires "Authorization: Bearer <token>" when token is set.
func bearerAuth(token config.SecretString) middleware {
	return func(next http.Handler) http.Handler {
		if len(token) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, candidate, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || !token.Matches(strings.TrimSpace(candidate)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="djc"`)
				http.Error(w, "Insufficient permissions.", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func requestLog(log *zap.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func(start time.Time) {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.status),
					zap.Int("size", rec.size),
					zap.String("remote", r.RemoteAddr),
					zap.Duration("elapsed", time.Since(start)),
				}
				if rec.status >= http.StatusInternalServerError {
					log.Warn("Request failed", fields...)
					return
				}
				log.Debug("Request served", fields...)
			}(time.Now())
			next.ServeHTTP(rec, r)
		})
	}
}
