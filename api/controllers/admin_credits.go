package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talentloop/talentloop-backend/api/controllers/requestctx"
	"github.com/talentloop/talentloop-backend/api/validators"
	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

type purchaseCreditsRequest struct {
	Credits   int             `json:"credits" validate:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	Reference string          `json:"reference" validate:"required,max=200"`
}

type adjustCreditsRequest struct {
	Delta int    `json:"delta" validate:"required"`
	Note  string `json:"note" validate:"required,max=500"`
}

type expireInvitationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// companyRequest reads the target company from the path and, when body is
// non-nil, decodes the JSON payload into it.
func companyRequest(r *http.Request, body any) (uuid.UUID, error) {
	companyID, err := validators.ParseUUIDParam(r, "companyId")
	if err != nil {
		return uuid.Nil, err
	}
	if body != nil {
		if err := validators.DecodeJSONBody(r, body); err != nil {
			return uuid.Nil, err
		}
	}
	return companyID, nil
}

// AdminProvisionCredits opens a zero balance for a company. Repeating it is
// harmless.
func AdminProvisionCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := companyRequest(r, nil)
		if err != nil {
			return nil, err
		}
		balance, err := svc.Provision(r.Context(), companyID)
		if err != nil {
			return nil, err
		}
		return newBalanceResponse(balance), nil
	})
}

func AdminPurchaseCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).created().handle(func(r *http.Request) (any, error) {
		var payload purchaseCreditsRequest
		companyID, err := companyRequest(r, &payload)
		if err != nil {
			return nil, err
		}
		return svc.Purchase(r.Context(), credits.PurchaseInput{
			CompanyID: companyID,
			Credits:   payload.Credits,
			Price:     payload.Price,
			Currency:  payload.Currency,
			Reference: validators.SanitizeString(payload.Reference, 200),
			ActorID:   requestctx.ActorUserID(r),
		})
	})
}

// AdminAdjustCredits applies a signed manual correction with a mandatory note.
func AdminAdjustCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).created().handle(func(r *http.Request) (any, error) {
		var payload adjustCreditsRequest
		companyID, err := companyRequest(r, &payload)
		if err != nil {
			return nil, err
		}
		return svc.Adjust(r.Context(), credits.AdjustInput{
			CompanyID:   companyID,
			Delta:       payload.Delta,
			Note:        validators.SanitizeString(payload.Note, 500),
			ActorUserID: requestctx.ActorUserID(r),
		})
	})
}

func AdminReconcileCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := companyRequest(r, nil)
		if err != nil {
			return nil, err
		}
		return svc.Reconcile(r.Context(), companyID)
	})
}

// AdminExpireInvitation closes a pending invitation without returning its
// credit. The body is optional.
func AdminExpireInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "invitations service", svc != nil).handle(func(r *http.Request) (any, error) {
		invitationID, err := validators.ParseUUIDParam(r, "invitationId")
		if err != nil {
			return nil, err
		}
		var payload expireInvitationRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.MarkExpiredNoRefund(r.Context(), invitations.ExpireInput{
			InvitationID: invitationID,
			Reason:       validators.SanitizeString(payload.Reason, 500),
			ActorUserID:  requestctx.ActorUserID(r),
		})
	})
}
