package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	"github.com/tsi-mlops/mldata/pkg/mldata/auth"
)

type contextKey string

// CredentialKey holds the authenticated *mldata.Credential in the
// request context.
const CredentialKey contextKey = "credential"

// BasicAuth returns middleware that validates the request's Basic auth
// pair (API key as username, API secret as password) against the
// credential store. Failures answer 401 with a WWW-Authenticate
// challenge before any other processing.
func BasicAuth(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, apiSecret, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, r)
				return
			}

			cred, err := authn.Authenticate(r.Context(), apiKey, apiSecret)
			if err != nil {
				slog.Info("Rejected credentials", "api_key", apiKey)
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CredentialKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="mldata"`)
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{
		Status: http.StatusText(http.StatusUnauthorized),
		Detail: mldata.ErrInvalidCredentials.Error(),
	})
}

// CredentialFromContext returns the credential the middleware attached,
// or nil when the request was not authenticated.
func CredentialFromContext(ctx context.Context) *mldata.Credential {
	cred, _ := ctx.Value(CredentialKey).(*mldata.Credential)
	return cred
}
