package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const visitorCookieMaxAge = 365 * 24 * time.Hour

type visitorKey struct{}

// Visitor identifies the browser behind a request.
type Visitor struct {
	// ID names the visitor's session storage namespace.
	ID string
	// Token is the bearer token of a logged-in visitor, empty otherwise.
	Token  string
	Locale string
}

// WithVisitor returns a copy of ctx carrying v.
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	return context.WithValue(ctx, visitorKey{}, v)
}

// VisitorFromContext returns the visitor stored by the Visitor middleware.
func VisitorFromContext(ctx context.Context) (Visitor, bool) {
	v, ok := ctx.Value(visitorKey{}).(Visitor)
	return v, ok
}

// VisitorIdentity resolves the visitor cookie, issuing a new one when it is
// missing or malformed, and reads the bearer token and locale.
func VisitorIdentity(cookies config.CookieConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			v := Visitor{
				ID:     cookieValue(r, cookies.Visitor),
				Token:  bearerToken(r, cookies.Token),
				Locale: cookieValue(r, cookies.Locale),
			}
			if v.Locale == "" {
				v.Locale = model.DefaultLocale
			}

			if _, err := uuid.Parse(v.ID); err != nil {
				v.ID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookies.Visitor,
					Value:    v.ID,
					Path:     "/",
					MaxAge:   int(visitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cookies.Secure,
					SameSite: http.SameSiteLaxMode,
				})
				logger.Debug().Str("visitor_id", v.ID).Msg("issued visitor cookie")
			}

			next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), v)))
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// bearerToken prefers the Authorization header over the token cookie.
func bearerToken(r *http.Request, cookie string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return cookieValue(r, cookie)
}
