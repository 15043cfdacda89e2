package controllers

import (
	"net/http"

	"github.com/talentloop/talentloop-backend/api/controllers/requestctx"
	"github.com/talentloop/talentloop-backend/api/validators"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

// ListNotifications returns paginated notifications for the caller company.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "notifications service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			return nil, err
		}
		if limit < 0 || (limit == 0 && validators.QueryString(r, "limit") != "") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer")
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			CompanyID:  companyID,
			Limit:      limit,
			Cursor:     validators.QueryString(r, "cursor"),
			UnreadOnly: unreadOnly,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "notifications service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		notificationID, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), companyID, notificationID); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "notifications service", svc != nil).handle(func(r *http.Request) (any, error) {
		companyID, err := requestctx.ResolveCompanyID(r)
		if err != nil {
			return nil, err
		}
		updated, err := svc.MarkAllRead(r.Context(), companyID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
