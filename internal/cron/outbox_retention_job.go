package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/pkg/logger"
)

const outboxRetentionDays = 30

// OutboxRetentionJobParams configures pruning of published outbox rows.
// DeadLetters is optional; when set, each run also reports how many rows
// were parked since the previous run.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	DeadLetters deadLetterCounter
	Retention   int
	Interval    time.Duration
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterCounter interface {
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	dlq       deadLetterCounter
	retention int
	interval  time.Duration
	now       func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if err := requireDependencies("outbox retention",
		dependency{"logger", params.Logger != nil},
		dependency{"db runner", params.DB != nil},
		dependency{"outbox repository", params.Repository != nil},
	); err != nil {
		return nil, err
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		dlq:       params.DeadLetters,
		retention: positiveOr(params.Retention, outboxRetentionDays),
		interval:  interval,
		now:       time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	published := sweep{name: "published", cutoff: daysBefore(now, j.retention), delete: j.repo.DeletePublishedBefore}
	removed, err := runSweeps(ctx, j.db, published)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         published.cutoff,
		"retention_days": j.retention,
		"rows_deleted":   removed[published.name],
	}), "published outbox events pruned")

	return j.reportDeadLetters(ctx, now.Add(-j.interval))
}

// reportDeadLetters warns when rows were parked since the previous run.
func (j *outboxRetentionJob) reportDeadLetters(ctx context.Context, since time.Time) error {
	if j.dlq == nil {
		return nil
	}
	parked, err := j.dlq.CountFailedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("outbox dlq backlog: %w", err)
	}
	if parked > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"dead_lettered": parked,
			"window":        j.interval.String(),
		}), "outbox events dead-lettered since last run")
	}
	return nil
}
