package controllers

import (
	"maps"
	"net/http"

	"github.com/talentloop/talentloop-backend/api/controllers/requestctx"
	"github.com/talentloop/talentloop-backend/api/validators"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

type createInvitationRequest struct {
	JobID         string `json:"jobId" validate:"required,max=200"`
	TemplateID    string `json:"templateId" validate:"required,max=200"`
	CandidateRef  string `json:"candidateRef" validate:"required,max=320"`
	TimeLimitDays int    `json:"timeLimitDays" validate:"min=0"`
}

// CreateInvitation charges one credit and records a pending invitation. A
// company without credits gets 402 with a purchase hint; every other service
// failure is reported without detail.
func CreateInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).created().handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		var payload createInvitationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		invitation, err := svc.Create(r.Context(), invitations.CreateInput{
			CompanyID:     companyID,
			JobID:         payload.JobID,
			TemplateID:    payload.TemplateID,
			CandidateRef:  payload.CandidateRef,
			TimeLimitDays: payload.TimeLimitDays,
			ActorUserID:   requestctx.ActorUserID(r),
		})
		if err != nil {
			return nil, createInvitationError(err)
		}
		return invitation, nil
	})
}

func createInvitationError(err error) error {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInsufficient:
		details := map[string]any{"action": "buy_credits"}
		if typed := pkgerrors.As(err); typed != nil {
			if extra, ok := typed.Details().(map[string]any); ok {
				maps.Copy(details, extra)
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeInsufficient, err, "not enough credits to send an invitation").WithDetails(details)
	case pkgerrors.CodeValidation, pkgerrors.CodeForbidden:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invitation")
	}
}

// ListInvitations pages the caller company's invitations, optionally filtered
// by status and candidate.
func ListInvitations(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			return nil, err
		}
		return svc.ListForCompany(r.Context(), invitations.ListParams{
			CompanyID:    companyID,
			Status:       validators.QueryString(r, "status"),
			CandidateRef: validators.QueryString(r, "candidate"),
			Limit:        limit,
			Cursor:       validators.QueryString(r, "cursor"),
		})
	})
}

// GetInvitation returns one invitation of the caller company. Invitations of
// other companies are reported as missing.
func GetInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		invitationID, err := validators.ParseUUIDParam(r, "invitationId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), companyID, invitationID)
	})
}
