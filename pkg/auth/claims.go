package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/pkg/enums"
)

// AccessTokenPayload is what callers supply when minting a token.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	CompanyID    *uuid.UUID
	Role         enums.MemberRole
	CandidateRef string
	JTI          string
}

// AccessTokenClaims is the signed body of an access token. Company members
// carry company_id; candidates carry candidate_ref instead.
type AccessTokenClaims struct {
	UserID       uuid.UUID        `json:"user_id"`
	CompanyID    *uuid.UUID       `json:"company_id,omitempty"`
	Role         enums.MemberRole `json:"role"`
	CandidateRef string           `json:"candidate_ref,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrUnknownRole      = errors.New("unknown member role")
	ErrMissingCompany   = errors.New("company id required for company roles")
	ErrMissingCandidate = errors.New("candidate ref required for candidate tokens")
)

// Validate checks that the role and the identity fields agree. The jwt parser
// calls it after the registered claims pass, so a forged but well-signed
// payload with a recruiter role and no company is still rejected.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("user id required")
	}
	switch {
	case !c.Role.IsValid():
		return fmt.Errorf("%w %q", ErrUnknownRole, c.Role)
	case c.Role.IsCompanyMember() && (c.CompanyID == nil || *c.CompanyID == uuid.Nil):
		return ErrMissingCompany
	case c.Role == enums.MemberRoleCandidate && strings.TrimSpace(c.CandidateRef) == "":
		return ErrMissingCandidate
	}
	return nil
}
