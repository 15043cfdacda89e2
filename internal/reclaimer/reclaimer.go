// Package reclaimer returns the credit of every debited invitation whose
// deadline passed without a submission.
package reclaimer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/metrics"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
	"github.com/talentloop/talentloop-backend/pkg/outbox/payloads"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 1
)

// Summary reports one reclaim run.
type Summary struct {
	RunID         uuid.UUID `json:"runId"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	ScannedCount  int       `json:"scannedCount"`
	RefundedCount int       `json:"refundedCount"`
	SkippedCount  int       `json:"skippedCount"`
	FailedCount   int       `json:"failedCount"`
	Failures      []Failure `json:"failures"`
}

// Failure records a single invitation that could not be refunded.
type Failure struct {
	InvitationID uuid.UUID `json:"invitationId"`
	Error        string    `json:"error"`
}

type outcome int

const (
	outcomeRefunded outcome = iota
	outcomeSkipped
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type refunder interface {
	CreditTx(ctx context.Context, tx *gorm.DB, input credits.CreditInput) (*models.CreditLedgerEntry, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

type Params struct {
	Invitations invitations.Repository
	TxRunner    txRunner
	Credits     refunder
	Notifier    notifier
	Outbox      outbox.Emitter
	Metrics     *metrics.CreditMetrics
	Logger      *logger.Logger
	BatchSize   int
	Concurrency int
	Now         func() time.Time
}

type Reclaimer struct {
	invitations invitations.Repository
	tx          txRunner
	credits     refunder
	notifier    notifier
	outbox      outbox.Emitter
	metrics     *metrics.CreditMetrics
	logg        *logger.Logger
	batchSize   int
	concurrency int
	now         func() time.Time
}

func New(params Params) (*Reclaimer, error) {
	if params.Invitations == nil {
		return nil, fmt.Errorf("invitations repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credits service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	workers := params.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Reclaimer{
		invitations: params.Invitations,
		tx:          params.TxRunner,
		credits:     params.Credits,
		notifier:    params.Notifier,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		batchSize:   batch,
		concurrency: workers,
		now:         now,
	}, nil
}

// Run refunds every eligible invitation found at the start of the run. Item
// failures are collected in the summary; only a failed scan returns an error,
// and the partial summary is returned with it.
func (r *Reclaimer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.New(),
		StartedAt: r.now().UTC(),
		Failures:  []Failure{},
	}
	runCtx := r.logg.WithField(ctx, "run_id", summary.RunID.String())
	cutoff := summary.StartedAt

	var mu sync.Mutex
	var after *invitations.ExpiryCursor
	for {
		if err := ctx.Err(); err != nil {
			return r.finish(runCtx, summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reclaim run cancelled"))
		}
		batch, err := r.invitations.ListRefundable(ctx, cutoff, after, r.batchSize)
		if err != nil {
			return r.finish(runCtx, summary, dbpkg.WrapStoreError(err, "scan refundable invitations"))
		}
		if len(batch) == 0 {
			break
		}
		summary.ScannedCount += len(batch)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(r.concurrency)
		for i := range batch {
			invitation := batch[i]
			group.Go(func() error {
				result, err := r.reclaimOne(groupCtx, invitation.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					summary.FailedCount++
					summary.Failures = append(summary.Failures, Failure{InvitationID: invitation.ID, Error: err.Error()})
					r.logg.Error(r.logg.WithField(runCtx, "invitation_id", invitation.ID.String()), "refund failed", err)
				case result == outcomeSkipped:
					summary.SkippedCount++
				default:
					summary.RefundedCount++
				}
				return nil
			})
		}
		_ = group.Wait()

		last := batch[len(batch)-1]
		after = &invitations.ExpiryCursor{ExpiresAt: last.ExpiresAt, ID: last.ID}
		if len(batch) < r.batchSize {
			break
		}
	}
	return r.finish(runCtx, summary, nil)
}

func (r *Reclaimer) finish(ctx context.Context, summary *Summary, err error) (*Summary, error) {
	summary.FinishedAt = r.now().UTC()
	r.metrics.AddReclaim("refunded", summary.RefundedCount)
	r.metrics.AddReclaim("skipped", summary.SkippedCount)
	r.metrics.AddReclaim("failed", summary.FailedCount)

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"scanned":  summary.ScannedCount,
		"refunded": summary.RefundedCount,
		"skipped":  summary.SkippedCount,
		"failed":   summary.FailedCount,
		"duration": summary.FinishedAt.Sub(summary.StartedAt).String(),
	})
	if err != nil {
		r.logg.Error(logCtx, "reclaim run aborted", err)
		return summary, err
	}
	r.logg.Info(logCtx, "reclaim run finished")
	return summary, nil
}

// reclaimOne refunds a single invitation in its own transaction. A status
// other than PENDING, or a lost conditional update, means another writer
// already settled it.
func (r *Reclaimer) reclaimOne(ctx context.Context, invitationID uuid.UUID) (outcome, error) {
	result := outcomeSkipped
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.invitations.WithTx(tx)
		current, err := repo.FindByID(ctx, invitationID)
		if err != nil {
			return dbpkg.WrapStoreError(err, "reload invitation")
		}
		if current.Status != enums.InvitationStatusPending || !current.CreditDebited {
			return nil
		}

		now := r.now().UTC()
		rows, err := repo.TransitionFromPending(ctx, invitationID, enums.InvitationStatusRefunded, now)
		if err != nil {
			return dbpkg.WrapStoreError(err, "mark invitation refunded")
		}
		if rows == 0 {
			return nil
		}

		id := current.ID
		entry, err := r.credits.CreditTx(ctx, tx, credits.CreditInput{
			CompanyID:           current.CompanyID,
			Amount:              current.DebitAmount,
			Reason:              enums.CreditReasonInviteRefunded,
			RelatedInvitationID: &id,
		})
		if err != nil {
			return err
		}
		if err := r.notifier.Notify(ctx, tx, notifications.NotifyInput{
			CompanyID: current.CompanyID,
			Type:      enums.NotificationTypeCreditsRefunded,
			Title:     "Credit refunded",
			Message:   fmt.Sprintf("%d credit returned: the candidate did not complete the assessment for job %s in time.", current.DebitAmount, current.JobID),
			Link:      "/invitations/" + current.ID.String(),
		}); err != nil {
			return err
		}
		companyID := current.CompanyID
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationRefunded,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{CompanyID: &companyID, Role: "system"},
			Data: payloads.InvitationRefundedEvent{
				InvitationID:  current.ID,
				CompanyID:     current.CompanyID,
				Amount:        current.DebitAmount,
				LedgerEntryID: entry.ID,
				RefundedAt:    now,
			},
		}); err != nil {
			return dbpkg.WrapStoreError(err, "emit invitation refunded")
		}

		r.logg.Info(r.logg.WithFields(r.logg.WithCompanyID(ctx, current.CompanyID.String()), map[string]any{
			"invitation_id":   current.ID.String(),
			"ledger_entry_id": entry.ID.String(),
			"amount":          current.DebitAmount,
		}), "invitation credit refunded")
		result = outcomeRefunded
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	return result, nil
}
