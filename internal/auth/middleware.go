package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/leafmarket-checkout/internal/common"
)

// IDTokenVerifier resolves a bearer token to a buyer uid.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (string, error)
}

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier IDTokenVerifier
}

// RequireAuth rejects requests without a valid bearer ID token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || m.Verifier == nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		uid, err := m.Verifier.VerifyIDToken(r.Context(), token)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("id token rejected")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithBuyerID(r.Context(), uid)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
