package credits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/pagination"
)

// Repository manages persistence for balances and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBalance(ctx context.Context, companyID uuid.UUID, now time.Time) (bool, error)
	GetBalance(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error)
	InsertEntry(ctx context.Context, entry *models.CreditLedgerEntry) (bool, error)
	FindEntryForInvitation(ctx context.Context, invitationID uuid.UUID, reason enums.CreditReason) (*models.CreditLedgerEntry, error)
	Decrement(ctx context.Context, companyID uuid.UUID, amount int, now time.Time) (int64, error)
	Increment(ctx context.Context, companyID uuid.UUID, amount int, now time.Time) (int64, error)
	ListEntries(ctx context.Context, companyID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CreditLedgerEntry, error)
	SumEntries(ctx context.Context, companyID uuid.UUID) (int64, error)
	ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateBalance inserts a zero balance; false means the row already existed.
func (r *repository) CreateBalance(ctx context.Context, companyID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO credit_balances (company_id, balance, created_at, updated_at)
VALUES (?, 0, ?, ?)
ON CONFLICT (company_id) DO NOTHING`,
		companyID, now, now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) GetBalance(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// InsertEntry appends the entry unless one already exists for the same
// (related_invitation_id, reason); false reports that duplicate.
func (r *repository) InsertEntry(ctx context.Context, entry *models.CreditLedgerEntry) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindEntryForInvitation(ctx context.Context, invitationID uuid.UUID, reason enums.CreditReason) (*models.CreditLedgerEntry, error) {
	var entry models.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("related_invitation_id = ? AND reason = ?", invitationID, reason).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Decrement subtracts amount only while the balance covers it.
func (r *repository) Decrement(ctx context.Context, companyID uuid.UUID, amount int, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditBalance{}).
		Where("company_id = ? AND balance >= ?", companyID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) Increment(ctx context.Context, companyID uuid.UUID, amount int, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditBalance{}).
		Where("company_id = ?", companyID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListEntries(ctx context.Context, companyID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CreditLedgerEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditLedgerEntry{}).Where("company_id = ?", companyID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var entries []models.CreditLedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumEntries(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("company_id = ?", companyID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *repository) ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditBalance{}).Order("company_id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("company_id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Pluck("company_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
