package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/pkg/enums"
)

// AssessmentInvitation is a paid request for a candidate to take an assessment.
type AssessmentInvitation struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID       uuid.UUID              `gorm:"column:company_id;type:uuid;not null" json:"companyId"`
	JobID           string                 `gorm:"column:job_id;type:text;not null" json:"jobId"`
	TemplateID      string                 `gorm:"column:template_id;type:text;not null" json:"templateId"`
	CandidateRef    string                 `gorm:"column:candidate_ref;type:text;not null" json:"candidateRef"`
	Status          enums.InvitationStatus `gorm:"column:status;type:invitation_status;not null" json:"status"`
	CreditDebited   bool                   `gorm:"column:credit_debited;not null;default:false" json:"creditDebited"`
	DebitAmount     int                    `gorm:"column:debit_amount;not null;default:0" json:"debitAmount"`
	CreatedByUserID *uuid.UUID             `gorm:"column:created_by_user_id;type:uuid" json:"createdByUserId,omitempty"`
	ExpiresAt       time.Time              `gorm:"column:expires_at;not null" json:"expiresAt"`
	CompletedAt     *time.Time             `gorm:"column:completed_at" json:"completedAt,omitempty"`
	RefundedAt      *time.Time             `gorm:"column:refunded_at" json:"refundedAt,omitempty"`
	ExpiredAt       *time.Time             `gorm:"column:expired_at" json:"expiredAt,omitempty"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (AssessmentInvitation) TableName() string { return "assessment_invitations" }
