package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/labaccess-backend/api/responses"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/security"
)

// OperatorToken guards operator endpoints with a bearer token. configured is
// either the token itself or its Argon2id hash.
func OperatorToken(configured string, logg *logger.Logger) func(http.Handler) http.Handler {
	check := func(provided string) bool {
		return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
	}
	if security.IsHash(configured) {
		check = func(provided string) bool {
			ok, err := security.VerifyToken(provided, configured)
			return err == nil && ok
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := bearer(r.Header.Get("Authorization"))
			if configured == "" || provided == "" || !check(provided) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
