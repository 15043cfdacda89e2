package controllers

import (
	"net/http"

	"github.com/talentloop/talentloop-backend/api/controllers/requestctx"
	"github.com/talentloop/talentloop-backend/api/validators"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

const completeFailedMessage = "could not submit, try again"

// ListCandidateInvitations pages the invitations addressed to the caller.
func ListCandidateInvitations(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).handle(func(r *http.Request) (any, error) {
		ref, err := requestctx.ResolveCandidateRef(r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			return nil, err
		}
		return svc.ListForCandidate(r.Context(), invitations.CandidateListParams{
			CandidateRef: ref,
			Limit:        limit,
			Cursor:       validators.QueryString(r, "cursor"),
		})
	})
}

// candidateSafe lists the failures a candidate can act on; anything else is
// answered with a generic retry message.
func candidateSafe(err error) (string, bool) {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeNotFound, pkgerrors.CodeInvalidState, pkgerrors.CodeValidation,
		pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden:
		return "", false
	}
	return completeFailedMessage, true
}

// CompleteInvitation records the caller's submission. Repeating it on a
// completed invitation returns the invitation unchanged.
func CompleteInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).masking(candidateSafe).handle(func(r *http.Request) (any, error) {
		ref, err := requestctx.ResolveCandidateRef(r)
		if err != nil {
			return nil, err
		}
		invitationID, err := validators.ParseUUIDParam(r, "invitationId")
		if err != nil {
			return nil, err
		}
		return svc.Complete(r.Context(), invitations.CompleteInput{
			InvitationID: invitationID,
			CandidateRef: ref,
		})
	})
}
