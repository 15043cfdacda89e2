package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/notifications"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/metrics"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
	"github.com/talentloop/talentloop-backend/pkg/outbox/payloads"
	"github.com/talentloop/talentloop-backend/pkg/pagination"
)

// Service is the only writer of credit balances and ledger entries.
type Service interface {
	Provision(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error)
	GetBalance(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error)
	GetHistory(ctx context.Context, params HistoryParams) (*HistoryResult, error)
	Debit(ctx context.Context, input DebitInput) (*models.CreditLedgerEntry, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.CreditLedgerEntry, error)
	Credit(ctx context.Context, input CreditInput) (*models.CreditLedgerEntry, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.CreditLedgerEntry, error)
	Purchase(ctx context.Context, input PurchaseInput) (*MovementResult, error)
	Adjust(ctx context.Context, input AdjustInput) (*MovementResult, error)
	Reconcile(ctx context.Context, companyID uuid.UUID) (*ReconcileResult, error)
	ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

// DebitInput charges credits for an invitation.
type DebitInput struct {
	CompanyID           uuid.UUID
	Amount              int
	RelatedInvitationID uuid.UUID
}

// CreditInput returns or grants credits.
type CreditInput struct {
	CompanyID           uuid.UUID
	Amount              int
	Reason              enums.CreditReason
	RelatedInvitationID *uuid.UUID
	Metadata            json.RawMessage
}

// PurchaseInput records a paid top-up settled by an external processor.
type PurchaseInput struct {
	CompanyID uuid.UUID
	Credits   int
	Price     decimal.Decimal
	Currency  string
	Reference string
	ActorID   *uuid.UUID
}

// AdjustInput is a signed manual correction.
type AdjustInput struct {
	CompanyID   uuid.UUID
	Delta       int
	Note        string
	ActorUserID *uuid.UUID
}

// HistoryParams pages a company's ledger newest first.
type HistoryParams struct {
	CompanyID uuid.UUID
	Limit     int
	Cursor    string
}

type HistoryResult struct {
	Items  []models.CreditLedgerEntry `json:"items"`
	Cursor string                     `json:"cursor"`
}

// MovementResult pairs a ledger entry with the balance after it applied.
type MovementResult struct {
	Entry   *models.CreditLedgerEntry `json:"entry"`
	Balance int                       `json:"balance"`
}

// ReconcileResult compares the materialized balance with the ledger sum.
type ReconcileResult struct {
	CompanyID uuid.UUID `json:"companyId"`
	Balance   int       `json:"balance"`
	LedgerSum int64     `json:"ledgerSum"`
	Drift     int64     `json:"drift"`
	InSync    bool      `json:"inSync"`
}

type ServiceParams struct {
	Repository          Repository
	TxRunner            txRunner
	Notifier            notifier
	Outbox              outbox.Emitter
	Metrics             *metrics.CreditMetrics
	Logger              *logger.Logger
	LowBalanceThreshold int
	Now                 func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	notifier     notifier
	outbox       outbox.Emitter
	metrics      *metrics.CreditMetrics
	logg         *logger.Logger
	lowThreshold int
	now          func() time.Time
}

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// NewService wires a credits service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repository,
		tx:           params.TxRunner,
		notifier:     params.Notifier,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         params.Logger,
		lowThreshold: params.LowBalanceThreshold,
		now:          now,
	}, nil
}

func (s *service) Provision(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error) {
	if companyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	created, err := s.repo.CreateBalance(ctx, companyID, s.now().UTC())
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "provision credit balance")
	}
	balance, err := s.repo.GetBalance(ctx, companyID)
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "load credit balance")
	}
	if created {
		s.logg.Info(s.logg.WithCompanyID(ctx, companyID.String()), "credit balance provisioned")
	}
	return balance, nil
}

func (s *service) GetBalance(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error) {
	if companyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	balance, err := s.repo.GetBalance(ctx, companyID)
	if err != nil {
		return nil, balanceLookupError(err)
	}
	return balance, nil
}

func (s *service) GetHistory(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	if params.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if _, err := s.repo.GetBalance(ctx, params.CompanyID); err != nil {
		return nil, balanceLookupError(err)
	}
	rows, err := s.repo.ListEntries(ctx, params.CompanyID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "list credit history")
	}
	items, next := pagination.Trim(rows, params.Limit, func(e models.CreditLedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	if items == nil {
		items = []models.CreditLedgerEntry{}
	}
	return &HistoryResult{Items: items, Cursor: next}, nil
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.CreditLedgerEntry, error) {
	var entry *models.CreditLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitTx charges input.Amount inside the caller's transaction. At most one
// debit exists per invitation; a repeat returns the original entry. On error
// the caller must roll back.
func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.CreditLedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.RelatedInvitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	invitationID := input.RelatedInvitationID
	res, err := s.applyTx(ctx, tx, movement{
		companyID:    input.CompanyID,
		amount:       -input.Amount,
		reason:       enums.CreditReasonInviteConsumed,
		invitationID: &invitationID,
	})
	if err != nil {
		return nil, err
	}
	if res.applied && res.balance <= s.lowThreshold && res.balance+input.Amount > s.lowThreshold {
		if err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			CompanyID: input.CompanyID,
			Type:      enums.NotificationTypeCreditsLow,
			Title:     "Assessment credits running low",
			Message:   fmt.Sprintf("You have %d assessment credits left.", res.balance),
			Link:      "/credits",
		}); err != nil {
			return nil, err
		}
	}
	return res.entry, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.CreditLedgerEntry, error) {
	var entry *models.CreditLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx adds credits inside the caller's transaction. A second refund for
// the same invitation returns the first entry without another increment.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.CreditLedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Reason.IsCredit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason %q cannot add credits", input.Reason))
	}
	if input.Reason == enums.CreditReasonInviteRefunded && (input.RelatedInvitationID == nil || *input.RelatedInvitationID == uuid.Nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refunds require an invitation id")
	}
	res, err := s.applyTx(ctx, tx, movement{
		companyID:    input.CompanyID,
		amount:       input.Amount,
		reason:       input.Reason,
		invitationID: input.RelatedInvitationID,
		metadata:     input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return res.entry, nil
}

func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*MovementResult, error) {
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.Credits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if !currencyRe.MatchString(currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter ISO code")
	}
	price := input.Price.StringFixed(2)
	metadata, err := json.Marshal(map[string]any{
		"price":     price,
		"currency":  currency,
		"reference": strings.TrimSpace(input.Reference),
		"unitPrice": input.Price.DivRound(decimal.NewFromInt(int64(input.Credits)), 4).String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode purchase metadata")
	}

	var result *MovementResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.applyTx(ctx, tx, movement{
			companyID: input.CompanyID,
			amount:    input.Credits,
			reason:    enums.CreditReasonPurchase,
			metadata:  metadata,
		})
		if err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			CompanyID: input.CompanyID,
			Type:      enums.NotificationTypeCreditsPurchased,
			Title:     "Credits added",
			Message:   fmt.Sprintf("%d assessment credits were added to your account.", input.Credits),
			Link:      "/credits",
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCreditsPurchased,
			AggregateType: enums.AggregateCreditBalance,
			AggregateID:   input.CompanyID,
			Actor:         actorRef(input.ActorID, input.CompanyID, string(enums.MemberRolePlatformAdmin)),
			Data: payloads.CreditsPurchasedEvent{
				CompanyID:     input.CompanyID,
				Credits:       input.Credits,
				Price:         price,
				Currency:      currency,
				Reference:     strings.TrimSpace(input.Reference),
				LedgerEntryID: res.entry.ID,
				Balance:       res.balance,
			},
		}); err != nil {
			return dbpkg.WrapStoreError(err, "emit credits purchased")
		}
		result = &MovementResult{Entry: res.entry, Balance: res.balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*MovementResult, error) {
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note required")
	}
	meta := map[string]any{"note": note}
	if input.ActorUserID != nil {
		meta["actorUserId"] = input.ActorUserID.String()
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode adjustment metadata")
	}

	var result *MovementResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.applyTx(ctx, tx, movement{
			companyID: input.CompanyID,
			amount:    input.Delta,
			reason:    enums.CreditReasonAdjustment,
			metadata:  metadata,
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCreditsAdjusted,
			AggregateType: enums.AggregateCreditBalance,
			AggregateID:   input.CompanyID,
			Actor:         actorRef(input.ActorUserID, input.CompanyID, string(enums.MemberRolePlatformAdmin)),
			Data: payloads.CreditsAdjustedEvent{
				CompanyID:     input.CompanyID,
				Delta:         input.Delta,
				Note:          note,
				LedgerEntryID: res.entry.ID,
				Balance:       res.balance,
			},
		}); err != nil {
			return dbpkg.WrapStoreError(err, "emit credits adjusted")
		}
		result = &MovementResult{Entry: res.entry, Balance: res.balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reconcile reports drift between the balance row and the ledger. It never
// rewrites the balance.
func (s *service) Reconcile(ctx context.Context, companyID uuid.UUID) (*ReconcileResult, error) {
	if companyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	var result *ReconcileResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		balance, err := repo.GetBalance(ctx, companyID)
		if err != nil {
			return balanceLookupError(err)
		}
		sum, err := repo.SumEntries(ctx, companyID)
		if err != nil {
			return dbpkg.WrapStoreError(err, "sum ledger entries")
		}
		drift := int64(balance.Balance) - sum
		result = &ReconcileResult{
			CompanyID: companyID,
			Balance:   balance.Balance,
			LedgerSum: sum,
			Drift:     drift,
			InSync:    drift == 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.InSync {
		logCtx := s.logg.WithFields(s.logg.WithCompanyID(ctx, companyID.String()), map[string]any{
			"balance":    result.Balance,
			"ledger_sum": result.LedgerSum,
			"drift":      result.Drift,
		})
		s.metrics.IncDrift()
		s.logg.Warn(logCtx, "credit ledger drift detected")
	}
	return result, nil
}

func (s *service) ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListCompanyIDs(ctx, after, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "list credit balances")
	}
	return ids, nil
}

type movement struct {
	companyID    uuid.UUID
	amount       int
	reason       enums.CreditReason
	invitationID *uuid.UUID
	metadata     json.RawMessage
}

type movementResult struct {
	entry   *models.CreditLedgerEntry
	balance int
	applied bool
}

// applyTx appends the ledger entry and moves the balance by the same signed
// amount. Negative amounts use a conditional decrement so the balance can
// never go below zero.
func (s *service) applyTx(ctx context.Context, tx *gorm.DB, m movement) (*movementResult, error) {
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()
	logCtx := s.logg.WithFields(s.logg.WithCompanyID(ctx, m.companyID.String()), map[string]any{
		"reason": m.reason,
		"amount": m.amount,
	})

	before, err := repo.GetBalance(ctx, m.companyID)
	if err != nil {
		return nil, balanceLookupError(err)
	}

	entry := &models.CreditLedgerEntry{
		ID:                  uuid.New(),
		CompanyID:           m.companyID,
		Amount:              m.amount,
		Reason:              m.reason,
		RelatedInvitationID: m.invitationID,
		Metadata:            m.metadata,
		CreatedAt:           now,
	}
	inserted, err := repo.InsertEntry(ctx, entry)
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "append ledger entry")
	}
	if !inserted {
		if m.invitationID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "ledger entry conflict")
		}
		existing, err := repo.FindEntryForInvitation(ctx, *m.invitationID, m.reason)
		if err != nil {
			return nil, dbpkg.WrapStoreError(err, "load existing ledger entry")
		}
		s.logg.Info(s.logg.WithField(logCtx, "invitation_id", m.invitationID.String()), "ledger entry already recorded for invitation")
		return &movementResult{entry: existing, balance: before.Balance}, nil
	}

	if m.amount < 0 {
		rows, err := repo.Decrement(ctx, m.companyID, -m.amount, now)
		if err != nil {
			return nil, dbpkg.WrapStoreError(err, "debit credit balance")
		}
		if rows == 0 {
			s.metrics.IncInsufficient()
			s.logg.Info(logCtx, "debit rejected for insufficient credits")
			return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "not enough credits").WithDetails(map[string]any{
				"balance":  before.Balance,
				"required": -m.amount,
			})
		}
	} else {
		rows, err := repo.Increment(ctx, m.companyID, m.amount, now)
		if err != nil {
			return nil, dbpkg.WrapStoreError(err, "credit credit balance")
		}
		if rows == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit balance not found")
		}
	}

	after, err := repo.GetBalance(ctx, m.companyID)
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "reload credit balance")
	}
	s.metrics.IncEntry(string(m.reason))
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"ledger_entry_id": entry.ID.String(),
		"balance":         after.Balance,
	}), "ledger entry recorded")
	return &movementResult{entry: entry, balance: after.Balance, applied: true}, nil
}

func balanceLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "credit balance not found")
	}
	return dbpkg.WrapStoreError(err, "load credit balance")
}

func actorRef(userID *uuid.UUID, companyID uuid.UUID, role string) *outbox.ActorRef {
	company := companyID
	return &outbox.ActorRef{UserID: userID, CompanyID: &company, Role: role}
}
