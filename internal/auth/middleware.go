package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"accountd/internal/httpapi"
	"accountd/internal/i18n"
)

type contextKey int

const (
	principalKey contextKey = iota
	rawTokenKey
)

// Gate is the request-level gatekeeper: it turns a bearer token into a
// Principal on the request context or ends the request with the matching
// typed rejection. Verification order lives in Service.VerifyToken.
type Gate struct {
	service *Service
}

func NewGate(service *Service) *Gate {
	return &Gate{service: service}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.Resolve(r)

		raw, rej := bearerToken(r)
		if rej != nil {
			httpapi.Fail(w, lang, rej.Status, rej.Name)
			return
		}

		user, err := g.service.VerifyToken(r.Context(), raw, TokenTypeAccess)
		if err != nil {
			if rej, ok := AsRejection(err); ok {
				httpapi.Fail(w, lang, rej.Status, rej.Name)
				return
			}
			// Storage or registry failure: a system error, never an auth
			// rejection.
			sentry.CaptureException(err)
			httpapi.Fail(w, lang, http.StatusInternalServerError, "INTERNAL_ERROR")
			return
		}

		// Activity is recorded off the request path; a failed update is
		// logged inside the service and never fails the request.
		go g.service.TouchLastActive(user.ID)

		ctx := context.WithValue(r.Context(), principalKey, Principal{
			ID:           user.ID,
			Email:        user.Email,
			Name:         user.Name,
			AuthProvider: user.AuthProvider,
		})
		ctx = context.WithValue(ctx, rawTokenKey, raw)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, *Rejection) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidToken
	}

	return token, nil
}

// PrincipalFrom returns the authenticated identity the gate attached.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	return principal, ok
}

// RawTokenFrom returns the bearer token that authorized this request;
// logout and account erasure revoke it.
func RawTokenFrom(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(rawTokenKey).(string)
	return raw, ok
}
