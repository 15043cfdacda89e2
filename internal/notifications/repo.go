package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, companyID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, companyID uuid.UUID, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	CompanyID  uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) table(ctx context.Context, tx *gorm.DB) *gorm.DB {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).Model(&models.Notification{})
}

func ofCompany(companyID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("company_id = ?", companyID) }
}

func unread(q *gorm.DB) *gorm.DB { return q.Where("read_at IS NULL") }

// after positions a newest-first keyset scan past c.
func after(c *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if c == nil {
			return q
		}
		return q.Where("(created_at, id) < (?, ?)", c.CreatedAt, c.ID)
	}
}

func (r *repositoryImpl) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// List returns up to Limit rows; callers pass a buffered limit to detect the next page.
func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	q := r.table(ctx, nil).Scopes(ofCompany(params.CompanyID), after(params.Cursor))
	if params.UnreadOnly {
		q = q.Scopes(unread)
	}
	var rows []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at once. A second call reports Found without Updated.
func (r *repositoryImpl) MarkRead(ctx context.Context, companyID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	res := r.table(ctx, nil).
		Scopes(ofCompany(companyID), unread).
		Where("id = ?", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return notificationMarkResult{}, res.Error
	}
	if res.RowsAffected > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}

	var existing int64
	err := r.table(ctx, nil).Scopes(ofCompany(companyID)).Where("id = ?", notificationID).Count(&existing).Error
	return notificationMarkResult{Found: existing > 0}, err
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, companyID uuid.UUID, now time.Time) (int64, error) {
	res := r.table(ctx, nil).Scopes(ofCompany(companyID), unread).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := r.table(ctx, tx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// DeleteReadOlderThan only removes notifications a recruiter has already seen.
func (r *repositoryImpl) DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := r.table(ctx, tx).Where("read_at IS NOT NULL AND created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
