package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/pkg/enums"
)

// CreditLedgerEntry is an immutable signed credit movement.
type CreditLedgerEntry struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID           uuid.UUID          `gorm:"column:company_id;type:uuid;not null" json:"companyId"`
	Amount              int                `gorm:"column:amount;not null" json:"amount"`
	Reason              enums.CreditReason `gorm:"column:reason;type:credit_reason;not null" json:"reason"`
	RelatedInvitationID *uuid.UUID         `gorm:"column:related_invitation_id;type:uuid" json:"relatedInvitationId,omitempty"`
	Metadata            json.RawMessage    `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
