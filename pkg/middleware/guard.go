package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/httputil"
	"github.com/platinummonkey/roster/pkg/observability"
)

// RequireGuard rejects requests whose principal fails g. Anonymous
// principals get 401, authenticated ones 403. The wrapped handler does not
// run on denial.
func RequireGuard(g auth.Guard, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.Check(PrincipalFromContext(r.Context()))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			status := DenialStatus(err)
			metrics.RecordGuardDenial(g.String(), status)
			httputil.WriteErrorMessage(w, status, err.Error())
		})
	}
}

// DenialStatus maps a guard error to its HTTP status
func DenialStatus(err error) int {
	var authzErr *auth.AuthorizationError
	if errors.As(err, &authzErr) && !authzErr.Authenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}
