package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/pkg/logger"
)

const (
	notificationRetentionDays = 30
	// Unread rows outlive read ones by this factor before they are dropped.
	unreadRetentionFactor = 3
)

// NotificationCleanupJobParams configures archival of old in-app notifications.
// Read notifications go after Retention days; unread ones are kept for
// unreadRetentionFactor times as long so a missed refund alert still shows.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

type notificationsCleanupRepo interface {
	DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      notificationsCleanupRepo
	retention int
	now       func() time.Time
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if err := requireDependencies("notification cleanup",
		dependency{"logger", params.Logger != nil},
		dependency{"db runner", params.DB != nil},
		dependency{"notifications repository", params.Repository != nil},
	); err != nil {
		return nil, err
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: positiveOr(params.Retention, notificationRetentionDays),
		now:       time.Now,
	}, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	now := j.now()
	read := sweep{name: "read", cutoff: daysBefore(now, j.retention), delete: j.repo.DeleteReadOlderThan}
	stale := sweep{name: "unread", cutoff: daysBefore(now, j.retention*unreadRetentionFactor), delete: j.repo.DeleteOlderThan}

	removed, err := runSweeps(ctx, j.db, read, stale)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"read_cutoff":    read.cutoff,
		"unread_cutoff":  stale.cutoff,
		"read_deleted":   removed[read.name],
		"unread_deleted": removed[stale.name],
	}), "notifications archived")
	return nil
}
