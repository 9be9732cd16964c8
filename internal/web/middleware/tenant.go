package middleware

import (
	"net/http"
	"regexp"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// TenantHeader names the tenant a request acts for.
const TenantHeader = "X-Tenant-ID"

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Tenant stores the caller's tenant in the request context. Requests without
// the header act for defaultTenant; malformed identifiers are rejected.
func Tenant(defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get(TenantHeader)
			if tenant == "" {
				tenant = defaultTenant
			}
			if !tenantPattern.MatchString(tenant) {
				writeJSONError(w, http.StatusBadRequest, "invalid tenant identifier", "AUTH003")
				return
			}

			ctx := core.ContextWithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
