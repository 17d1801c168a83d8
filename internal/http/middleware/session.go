package middleware

import (
	"context"
	"net/http"

	"github.com/diagnosis/museum-tickets/internal/platform/auth"
	"github.com/diagnosis/museum-tickets/pkg/logger"
)

type ctxKey string

const CtxSession ctxKey = "session"

type SessionConfig struct {
	CookieName string
	Secure     bool
}

// VisitorSession makes sure every request carries a visitor session. A
// missing or invalid cookie is replaced by a freshly issued one.
func VisitorSession(sessions *auth.Sessions, cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
				if id, err := sessions.Parse(c.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxSession, id)))
					return
				}
			}

			id, token, err := sessions.Issue()
			if err != nil {
				logger.ErrorContext(r.Context(), "Failed to issue visitor session", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			cookie := &http.Cookie{
				Name:     cfg.CookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			}
			if ttl := sessions.TTL(); ttl > 0 {
				cookie.MaxAge = int(ttl.Seconds())
			}
			http.SetCookie(w, cookie)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxSession, id)))
		})
	}
}

// SessionID returns the visitor session id set by VisitorSession.
func SessionID(r *http.Request) string {
	if v, ok := r.Context().Value(CtxSession).(string); ok {
		return v
	}
	return ""
}
