package controllers

import (
	"net/http"

	"github.com/talentloop/talentloop-backend/api/controllers/requestctx"
	"github.com/talentloop/talentloop-backend/api/validators"
	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

type balanceResponse struct {
	CompanyID string `json:"companyId"`
	Balance   int    `json:"balance"`
}

func newBalanceResponse(b *models.CreditBalance) balanceResponse {
	return balanceResponse{CompanyID: b.CompanyID.String(), Balance: b.Balance}
}

// CreditBalance returns the caller company's current balance.
func CreditBalance(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		balance, err := svc.GetBalance(r.Context(), companyID)
		if err != nil {
			return nil, err
		}
		return newBalanceResponse(balance), nil
	})
}

// CreditHistory returns the caller company's ledger, newest first.
func CreditHistory(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "credits service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			return nil, err
		}
		return svc.GetHistory(r.Context(), credits.HistoryParams{
			CompanyID: companyID,
			Limit:     limit,
			Cursor:    validators.QueryString(r, "cursor"),
		})
	})
}
