package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

const reconcilePageSize = 100

type ledgerReconciler interface {
	ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, companyID uuid.UUID) (*credits.ReconcileResult, error)
}

type LedgerReconcileJobParams struct {
	Logger  *logger.Logger
	Credits ledgerReconciler
}

// NewLedgerReconcileJob checks every balance against its ledger. Drift is
// reported, never corrected.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if err := requireDependencies("ledger reconcile",
		dependency{"logger", params.Logger != nil},
		dependency{"credits service", params.Credits != nil},
	); err != nil {
		return nil, err
	}
	return &ledgerReconcileJob{logg: params.Logger, credits: params.Credits}, nil
}

type ledgerReconcileJob struct {
	logg    *logger.Logger
	credits ledgerReconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	var (
		errs    []error
		checked int
		drifted int
		after   = uuid.Nil
	)
	for {
		ids, err := j.credits.ListCompanyIDs(ctx, after, reconcilePageSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("list balances: %w", err))
			break
		}
		for _, companyID := range ids {
			res, err := j.credits.Reconcile(ctx, companyID)
			if err != nil {
				errs = append(errs, fmt.Errorf("reconcile %s: %w", companyID, err))
				continue
			}
			checked++
			if !res.InSync {
				drifted++
			}
		}
		if len(ids) < reconcilePageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"companies_checked": checked,
		"companies_drifted": drifted,
		"errors":            len(errs),
	}), "ledger reconcile complete")
	return multierr.Combine(errs...)
}
