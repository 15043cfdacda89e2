package reclaimer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	"github.com/talentloop/talentloop-backend/pkg/config"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/dbtest"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/metrics"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	db          *gorm.DB
	logg        *logger.Logger
	tx          *dbpkg.Client
	notifier    notifications.Service
	emitter     *outbox.Service
	credits     credits.Service
	invitations invitations.Service
	repo        invitations.Repository
	clock       *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "reclaimer-test", Output: io.Discard})
	tx := dbpkg.NewFromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	notifier, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)}

	creditSvc, err := credits.NewService(credits.ServiceParams{
		Repository: credits.NewRepository(conn),
		TxRunner:   tx,
		Notifier:   notifier,
		Outbox:     emitter,
		Logger:     logg,
		Now:        clk.Now,
	})
	require.NoError(t, err)
	repo := invitations.NewRepository(conn)
	invSvc, err := invitations.NewService(invitations.ServiceParams{
		Repository: repo,
		TxRunner:   tx,
		Credits:    creditSvc,
		Notifier:   notifier,
		Outbox:     emitter,
		Logger:     logg,
		Config:     config.CreditsConfig{InviteCost: 1, DefaultInviteDays: 7, MaxInviteDays: 90},
		Now:        clk.Now,
	})
	require.NoError(t, err)

	return &harness{
		db:          conn,
		logg:        logg,
		tx:          tx,
		notifier:    notifier,
		emitter:     emitter,
		credits:     creditSvc,
		invitations: invSvc,
		repo:        repo,
		clock:       clk,
	}
}

func (h *harness) reclaimer(t *testing.T, mutate func(*Params)) *Reclaimer {
	t.Helper()
	params := Params{
		Invitations: h.repo,
		TxRunner:    h.tx,
		Credits:     h.credits,
		Notifier:    h.notifier,
		Outbox:      h.emitter,
		Metrics:     metrics.NewCreditMetrics(prometheus.NewRegistry()),
		Logger:      h.logg,
		Now:         h.clock.Now,
	}
	if mutate != nil {
		mutate(&params)
	}
	r, err := New(params)
	require.NoError(t, err)
	return r
}

func (h *harness) company(t *testing.T, balance int) uuid.UUID {
	t.Helper()
	companyID := uuid.New()
	_, err := h.credits.Provision(context.Background(), companyID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = h.credits.Purchase(context.Background(), credits.PurchaseInput{
			CompanyID: companyID,
			Credits:   balance,
			Price:     decimal.NewFromInt(int64(balance) * 10),
			Currency:  "USD",
		})
		require.NoError(t, err)
	}
	return companyID
}

func (h *harness) invite(t *testing.T, companyID uuid.UUID, candidate string) *models.AssessmentInvitation {
	t.Helper()
	inv, err := h.invitations.Create(context.Background(), invitations.CreateInput{
		CompanyID:    companyID,
		JobID:        "job-42",
		TemplateID:   "tmpl-1",
		CandidateRef: candidate,
	})
	require.NoError(t, err)
	return inv
}

// expire moves the deadline behind the current clock.
func (h *harness) expire(t *testing.T, ids ...uuid.UUID) {
	t.Helper()
	past := h.clock.now.Add(-24 * time.Hour)
	require.NoError(t, h.db.Model(&models.AssessmentInvitation{}).Where("id IN ?", ids).Update("expires_at", past).Error)
}

func (h *harness) status(t *testing.T, id uuid.UUID) enums.InvitationStatus {
	t.Helper()
	inv, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return inv.Status
}

func (h *harness) balance(t *testing.T, companyID uuid.UUID) int {
	t.Helper()
	b, err := h.credits.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	return b.Balance
}

func TestRunRefundsOnlyExpiredPending(t *testing.T) {
	h := newHarness(t)
	companyID := h.company(t, 3)
	completed := h.invite(t, companyID, "c-completed")
	lapsed := h.invite(t, companyID, "c-lapsed")
	open := h.invite(t, companyID, "c-open")
	require.Equal(t, 0, h.balance(t, companyID))

	_, err := h.invitations.Complete(context.Background(), invitations.CompleteInput{InvitationID: completed.ID})
	require.NoError(t, err)
	h.expire(t, completed.ID, lapsed.ID)

	summary, err := h.reclaimer(t, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RefundedCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 1, h.balance(t, companyID))
	assert.Equal(t, enums.InvitationStatusCompleted, h.status(t, completed.ID))
	assert.Equal(t, enums.InvitationStatusRefunded, h.status(t, lapsed.ID))
	assert.Equal(t, enums.InvitationStatusPending, h.status(t, open.ID))

	var notes int64
	require.NoError(t, h.db.Model(&models.Notification{}).Where("company_id = ? AND type = ?", companyID, enums.NotificationTypeCreditsRefunded).Count(&notes).Error)
	assert.EqualValues(t, 1, notes)
	var events int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("aggregate_id = ? AND event_type = ?", lapsed.ID, enums.EventInvitationRefunded).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	rec, err := h.credits.Reconcile(context.Background(), companyID)
	require.NoError(t, err)
	assert.True(t, rec.InSync)
}

func TestSecondRunFindsNothing(t *testing.T) {
	h := newHarness(t)
	companyID := h.company(t, 2)
	a := h.invite(t, companyID, "c-1")
	b := h.invite(t, companyID, "c-2")
	h.expire(t, a.ID, b.ID)
	r := h.reclaimer(t, nil)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.RefundedCount)

	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ScannedCount)
	assert.Equal(t, 0, second.RefundedCount)
	assert.Equal(t, 2, h.balance(t, companyID))

	var refunds int64
	require.NoError(t, h.db.Model(&models.CreditLedgerEntry{}).Where("company_id = ? AND reason = ?", companyID, enums.CreditReasonInviteRefunded).Count(&refunds).Error)
	assert.EqualValues(t, 2, refunds)
}

func TestRunPagesThroughBatchesConcurrently(t *testing.T) {
	h := newHarness(t)
	companyID := h.company(t, 7)
	ids := make([]uuid.UUID, 0, 7)
	for i := 0; i < 7; i++ {
		ids = append(ids, h.invite(t, companyID, "c").ID)
	}
	h.expire(t, ids...)

	summary, err := h.reclaimer(t, func(p *Params) {
		p.BatchSize = 3
		p.Concurrency = 4
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, summary.ScannedCount)
	assert.Equal(t, 7, summary.RefundedCount)
	assert.Equal(t, 7, h.balance(t, companyID))
}

func TestRunSkipsInvitationsSettledMeanwhile(t *testing.T) {
	h := newHarness(t)
	companyID := h.company(t, 1)
	inv := h.invite(t, companyID, "c-1")
	h.expire(t, inv.ID)

	r := h.reclaimer(t, func(p *Params) {
		p.Invitations = completingRepo{Repository: h.repo, db: h.db}
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ScannedCount)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, 0, summary.RefundedCount)
	assert.Equal(t, 0, h.balance(t, companyID))
	assert.Equal(t, enums.InvitationStatusCompleted, h.status(t, inv.ID))
}

func TestRunRecordsItemFailuresAndContinues(t *testing.T) {
	h := newHarness(t)
	companyID := h.company(t, 2)
	bad := h.invite(t, companyID, "c-bad")
	good := h.invite(t, companyID, "c-good")
	h.expire(t, bad.ID, good.ID)

	summary, err := h.reclaimer(t, func(p *Params) {
		p.Credits = failingRefunder{next: h.credits, failFor: bad.ID}
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RefundedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, bad.ID, summary.Failures[0].InvitationID)
	assert.Equal(t, enums.InvitationStatusPending, h.status(t, bad.ID))
	assert.Equal(t, enums.InvitationStatusRefunded, h.status(t, good.ID))
	assert.Equal(t, 1, h.balance(t, companyID))

	raw, err := json.Marshal(summary)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 1, decoded["refundedCount"])
	assert.EqualValues(t, 1, decoded["failedCount"])
	failures := decoded["failures"].([]any)
	assert.Equal(t, bad.ID.String(), failures[0].(map[string]any)["invitationId"])
}

func TestRunReturnsPartialSummaryWhenScanFails(t *testing.T) {
	h := newHarness(t)
	r := h.reclaimer(t, func(p *Params) {
		p.Invitations = brokenScanRepo{Repository: h.repo}
	})

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.RefundedCount)
	assert.False(t, summary.FinishedAt.IsZero())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

type completingRepo struct {
	invitations.Repository
	db *gorm.DB
}

// ListRefundable hands back rows and then lets a candidate win the race.
func (r completingRepo) ListRefundable(ctx context.Context, now time.Time, after *invitations.ExpiryCursor, limit int) ([]models.AssessmentInvitation, error) {
	rows, err := r.Repository.ListRefundable(ctx, now, after, limit)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, err := r.Repository.TransitionFromPending(ctx, row.ID, enums.InvitationStatusCompleted, now); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (r completingRepo) WithTx(tx *gorm.DB) invitations.Repository {
	return r.Repository.WithTx(tx)
}

type brokenScanRepo struct {
	invitations.Repository
}

func (brokenScanRepo) ListRefundable(context.Context, time.Time, *invitations.ExpiryCursor, int) ([]models.AssessmentInvitation, error) {
	return nil, errors.New("relation does not exist")
}

type failingRefunder struct {
	next    refunder
	failFor uuid.UUID
}

func (f failingRefunder) CreditTx(ctx context.Context, tx *gorm.DB, input credits.CreditInput) (*models.CreditLedgerEntry, error) {
	if input.RelatedInvitationID != nil && *input.RelatedInvitationID == f.failFor {
		return nil, errors.New("ledger unavailable")
	}
	return f.next.CreditTx(ctx, tx, input)
}
