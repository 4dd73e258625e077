package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"identix/pkg/requestcontext"
)

// RoleIssuer is the only role allowed to mint and revoke credentials.
const RoleIssuer = "issuer"

// JWTValidator defines the interface for validating issuer bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*IssuerClaims, error)
}

// IssuerClaims represents the claims we expect from the JWT validator.
type IssuerClaims struct {
	IssuerID string
	Role     string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireIssuer returns middleware that validates the bearer token, checks the
// issuer role, and stores the issuer ID in the request context.
func RequireIssuer(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if strings.TrimSpace(claims.IssuerID) == "" {
				logger.WarnContext(ctx, "unauthorized access - token without subject",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if claims.Role != RoleIssuer {
				logger.WarnContext(ctx, "forbidden - caller is not an issuer",
					"issuer_id", claims.IssuerID,
					"role", claims.Role,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Issuer role required")
				return
			}

			ctx = requestcontext.WithIssuerID(ctx, claims.IssuerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
