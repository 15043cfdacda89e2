package controllers

import (
	"context"
	"net/http"

	"github.com/talentloop/talentloop-backend/internal/reclaimer"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

type reclaimRunner interface {
	Run(ctx context.Context) (*reclaimer.Summary, error)
}

// ReclaimCredits runs one refund pass for the external scheduler. Item
// failures are part of a successful summary; an aborted scan answers 503 with
// the partial summary so the scheduler retries.
func ReclaimCredits(runner reclaimRunner, logg *logger.Logger) http.HandlerFunc {
	return newRoute(logg, "reclaimer", runner != nil).handle(func(r *http.Request) (any, error) {
		summary, err := runner.Run(r.Context())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reclaim run failed").WithDetails(summary)
		}
		return summary, nil
	})
}
