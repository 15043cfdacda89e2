package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/notifications"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/dbtest"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

func TestNotificationCleanupJobDeletesExpiredNotifications(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{deletedRows: 42}
	job := newNotificationCleanupJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := now.AddDate(0, 0, -notificationRetentionDays); !repo.readCutoff.Equal(want) {
		t.Fatalf("expected read cutoff %s, got %s", want, repo.readCutoff)
	}
	if want := now.AddDate(0, 0, -notificationRetentionDays*unreadRetentionFactor); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected unread cutoff %s, got %s", want, repo.lastCutoff)
	}
	if repo.called != 2 {
		t.Fatalf("expected two deletes, got %d", repo.called)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("boom")}
	job := newNotificationCleanupJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newNotificationCleanupJob(t *testing.T, repo *fakeNotificationRepo) *notificationCleanupJob {
	t.Helper()
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         fakeTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job, ok := jobIface.(*notificationCleanupJob)
	if !ok {
		t.Fatalf("expected notificationCleanupJob, got %T", jobIface)
	}
	return job
}

type fakeNotificationRepo struct {
	readCutoff  time.Time
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakeNotificationRepo) DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.readCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func (f *fakeNotificationRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func TestNotificationCleanupJobKeepsRecentUnreadAlerts(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	readAt := now.AddDate(0, 0, -20)
	seed := func(createdAt time.Time, read *time.Time) uuid.UUID {
		id := uuid.New()
		require.NoError(t, conn.Create(&models.Notification{
			ID:        id,
			CompanyID: uuid.New(),
			Type:      enums.NotificationTypeCreditsRefunded,
			Title:     "refund",
			Message:   "1 credit returned",
			ReadAt:    read,
			CreatedAt: createdAt,
		}).Error)
		return id
	}
	seed(now.AddDate(0, 0, -45), &readAt)
	unreadOld := seed(now.AddDate(0, 0, -45), nil)
	seed(now.AddDate(0, 0, -100), nil)
	readRecent := seed(now.AddDate(0, 0, -3), &readAt)

	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         dbpkg.NewFromConn(conn),
		Repository: notifications.NewRepository(conn),
		Retention:  30,
	})
	require.NoError(t, err)
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))

	var left []uuid.UUID
	require.NoError(t, conn.Model(&models.Notification{}).Pluck("id", &left).Error)
	assert.ElementsMatch(t, []uuid.UUID{unreadOld, readRecent}, left)
}
