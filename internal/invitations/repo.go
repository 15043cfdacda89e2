package invitations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/pagination"
)

// Repository persists assessment invitations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation *models.AssessmentInvitation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AssessmentInvitation, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, to enums.InvitationStatus, at time.Time) (int64, error)
	ListForCompany(ctx context.Context, filter CompanyFilter, cursor *pagination.Cursor, limit int) ([]models.AssessmentInvitation, error)
	ListForCandidate(ctx context.Context, candidateRef string, cursor *pagination.Cursor, limit int) ([]models.AssessmentInvitation, error)
	ListRefundable(ctx context.Context, now time.Time, after *ExpiryCursor, limit int) ([]models.AssessmentInvitation, error)
}

// CompanyFilter narrows a company listing.
type CompanyFilter struct {
	CompanyID    uuid.UUID
	Status       *enums.InvitationStatus
	CandidateRef string
}

// ExpiryCursor positions a refund scan by (expires_at, id).
type ExpiryCursor struct {
	ExpiresAt time.Time
	ID        uuid.UUID
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invitation *models.AssessmentInvitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AssessmentInvitation, error) {
	var invitation models.AssessmentInvitation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// TransitionFromPending moves a PENDING invitation to a terminal status. Zero
// rows affected means another writer got there first.
func (r *repository) TransitionFromPending(ctx context.Context, id uuid.UUID, to enums.InvitationStatus, at time.Time) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.InvitationStatusCompleted:
		updates["completed_at"] = at
	case enums.InvitationStatusRefunded:
		updates["refunded_at"] = at
	case enums.InvitationStatusExpired:
		updates["expired_at"] = at
	}
	result := r.db.WithContext(ctx).
		Model(&models.AssessmentInvitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) ListForCompany(ctx context.Context, filter CompanyFilter, cursor *pagination.Cursor, limit int) ([]models.AssessmentInvitation, error) {
	query := r.db.WithContext(ctx).Model(&models.AssessmentInvitation{}).Where("company_id = ?", filter.CompanyID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CandidateRef != "" {
		query = query.Where("candidate_ref = ?", filter.CandidateRef)
	}
	return r.page(query, cursor, limit)
}

func (r *repository) ListForCandidate(ctx context.Context, candidateRef string, cursor *pagination.Cursor, limit int) ([]models.AssessmentInvitation, error) {
	query := r.db.WithContext(ctx).Model(&models.AssessmentInvitation{}).Where("candidate_ref = ?", candidateRef)
	return r.page(query, cursor, limit)
}

func (r *repository) page(query *gorm.DB, cursor *pagination.Cursor, limit int) ([]models.AssessmentInvitation, error) {
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.AssessmentInvitation
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRefundable returns pending, debited invitations that expired before now,
// oldest expiry first.
func (r *repository) ListRefundable(ctx context.Context, now time.Time, after *ExpiryCursor, limit int) ([]models.AssessmentInvitation, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AssessmentInvitation{}).
		Where("status = ? AND credit_debited = ? AND expires_at < ?", enums.InvitationStatusPending, true, now)
	if after != nil {
		query = query.Where("(expires_at, id) > (?, ?)", after.ExpiresAt, after.ID)
	}
	var rows []models.AssessmentInvitation
	if err := query.Order("expires_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
