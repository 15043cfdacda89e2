package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditBalance is the materialized credit count for a company. The ledger is
// the source of truth; this row must always equal the sum of its entries.
type CreditBalance struct {
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;primaryKey" json:"companyId"`
	Balance   int       `gorm:"column:balance;not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (CreditBalance) TableName() string { return "credit_balances" }
