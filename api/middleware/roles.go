package middleware

import (
	"net/http"
	"slices"

	"github.com/talentloop/talentloop-backend/api/responses"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

// RequireRole admits callers whose token role is one of allowed. The
// route group decides the role set; handlers never re-check it.
func RequireRole(logg *logger.Logger, allowed ...enums.MemberRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.MemberRole(RoleFromContext(r.Context()))
			if role.IsValid() && slices.Contains(allowed, role) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"role": string(role), "path": r.URL.Path})
				logg.Warn(ctx, "role denied")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this resource"))
		})
	}
}
