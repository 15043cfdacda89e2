package cron

import (
	"context"
	"fmt"

	"github.com/talentloop/talentloop-backend/internal/reclaimer"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

type reclaimRunner interface {
	Run(ctx context.Context) (*reclaimer.Summary, error)
}

type CreditRefundJobParams struct {
	Logger    *logger.Logger
	Reclaimer reclaimRunner
}

// NewCreditRefundJob schedules the refund of expired, uncompleted invitations.
func NewCreditRefundJob(params CreditRefundJobParams) (Job, error) {
	if err := requireDependencies("credit refund",
		dependency{"logger", params.Logger != nil},
		dependency{"reclaimer", params.Reclaimer != nil},
	); err != nil {
		return nil, err
	}
	return &creditRefundJob{logg: params.Logger, reclaimer: params.Reclaimer}, nil
}

type creditRefundJob struct {
	logg      *logger.Logger
	reclaimer reclaimRunner
}

func (j *creditRefundJob) Name() string { return "credit-refund" }

// Run fails only when the scan itself failed. Individual refund failures stay
// eligible and are retried on the next cycle.
func (j *creditRefundJob) Run(ctx context.Context) error {
	summary, err := j.reclaimer.Run(ctx)
	if err != nil {
		return fmt.Errorf("credit refund: %w", err)
	}
	if summary != nil && summary.FailedCount > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"run_id":   summary.RunID.String(),
			"failed":   summary.FailedCount,
			"refunded": summary.RefundedCount,
		}), "credit refund finished with failures")
	}
	return nil
}
