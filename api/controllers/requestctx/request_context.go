// Package requestctx resolves the caller identity that auth middleware placed
// on the request.
package requestctx

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/api/middleware"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
)

// ResolveCompanyID extracts the caller's company.
func ResolveCompanyID(r *http.Request) (uuid.UUID, error) {
	companyID := middleware.CompanyIDFromContext(r.Context())
	if companyID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "company context required")
	}
	id, err := uuid.Parse(companyID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid company id")
	}
	return id, nil
}

// ResolveCandidateRef extracts the candidate reference of a candidate token.
func ResolveCandidateRef(r *http.Request) (string, error) {
	ref := middleware.CandidateRefFromContext(r.Context())
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "candidate context required")
	}
	return ref, nil
}

// ActorUserID returns the authenticated user, or nil when absent or malformed.
func ActorUserID(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return nil
	}
	return &id
}
