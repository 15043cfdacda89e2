package payloads

import (
	"time"

	"github.com/google/uuid"
)

// Each payload names the aggregate it belongs to, which must equal the
// aggregate_id of the outbox row that carries it.

// InvitationCreatedEvent is emitted once an invitation has been paid for.
type InvitationCreatedEvent struct {
	InvitationID uuid.UUID `json:"invitation_id" validate:"required"`
	CompanyID    uuid.UUID `json:"company_id" validate:"required"`
	JobID        string    `json:"job_id" validate:"required"`
	TemplateID   string    `json:"template_id" validate:"required"`
	CandidateRef string    `json:"candidate_ref" validate:"required"`
	DebitAmount  int       `json:"debit_amount" validate:"gt=0"`
	ExpiresAt    time.Time `json:"expires_at" validate:"required"`
}

func (e InvitationCreatedEvent) AggregateKey() uuid.UUID { return e.InvitationID }

// InvitationCompletedEvent is emitted when the candidate submits.
type InvitationCompletedEvent struct {
	InvitationID uuid.UUID `json:"invitation_id" validate:"required"`
	CompanyID    uuid.UUID `json:"company_id" validate:"required"`
	CandidateRef string    `json:"candidate_ref" validate:"required"`
	CompletedAt  time.Time `json:"completed_at" validate:"required"`
}

func (e InvitationCompletedEvent) AggregateKey() uuid.UUID { return e.InvitationID }

// InvitationRefundedEvent is emitted when an unanswered invitation's credit
// goes back to the company.
type InvitationRefundedEvent struct {
	InvitationID  uuid.UUID `json:"invitation_id" validate:"required"`
	CompanyID     uuid.UUID `json:"company_id" validate:"required"`
	Amount        int       `json:"amount" validate:"gt=0"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	RefundedAt    time.Time `json:"refunded_at"`
}

func (e InvitationRefundedEvent) AggregateKey() uuid.UUID { return e.InvitationID }

// InvitationExpiredEvent is emitted when an operator closes an invitation
// without returning its credit.
type InvitationExpiredEvent struct {
	InvitationID uuid.UUID `json:"invitation_id" validate:"required"`
	CompanyID    uuid.UUID `json:"company_id" validate:"required"`
	Reason       string    `json:"reason,omitempty"`
	ExpiredAt    time.Time `json:"expired_at"`
}

func (e InvitationExpiredEvent) AggregateKey() uuid.UUID { return e.InvitationID }

// CreditsPurchasedEvent records a paid top-up.
type CreditsPurchasedEvent struct {
	CompanyID     uuid.UUID `json:"company_id" validate:"required"`
	Credits       int       `json:"credits" validate:"gt=0"`
	Price         string    `json:"price" validate:"required"`
	Currency      string    `json:"currency" validate:"len=3"`
	Reference     string    `json:"reference,omitempty"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	Balance       int       `json:"balance" validate:"gte=0"`
}

func (e CreditsPurchasedEvent) AggregateKey() uuid.UUID { return e.CompanyID }

// CreditsAdjustedEvent records a manual correction.
type CreditsAdjustedEvent struct {
	CompanyID     uuid.UUID `json:"company_id" validate:"required"`
	Delta         int       `json:"delta" validate:"ne=0"`
	Note          string    `json:"note" validate:"required"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	Balance       int       `json:"balance" validate:"gte=0"`
}

func (e CreditsAdjustedEvent) AggregateKey() uuid.UUID { return e.CompanyID }
