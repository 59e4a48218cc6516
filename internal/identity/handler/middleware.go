package handler

import (
	"net/http"
	"strings"

	"github.com/medstock/medstock-backend/internal/identity/jwt"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// Authenticator validates the Bearer token on each request and attaches the
// resulting principal to the request context. Requests without a valid token
// are rejected before reaching any handler.
func Authenticator(manager *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.Error(w, errors.Unauthorized("authorization header must be a Bearer token"))
				return
			}

			claims, err := manager.ValidateAccessToken(parts[1])
			if err != nil {
				httputil.Error(w, err)
				return
			}

			p := &principal.Principal{
				ID:       claims.UserID,
				Username: claims.Username,
				FullName: claims.Name,
				Role:     claims.Role,
			}

			next.ServeHTTP(w, r.WithContext(principal.WithPrincipal(r.Context(), p)))
		})
	}
}
