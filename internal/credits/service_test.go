package credits

import (
	"context"
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

	"github.com/talentloop/talentloop-backend/internal/notifications"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/dbtest"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/metrics"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T, lowThreshold int) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "credits-test", Output: io.Discard})
	notifier, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	clock := &steppingClock{now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}

	svc, err := NewService(ServiceParams{
		Repository:          NewRepository(conn),
		TxRunner:            dbpkg.NewFromConn(conn),
		Notifier:            notifier,
		Outbox:              outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:             metrics.NewCreditMetrics(prometheus.NewRegistry()),
		Logger:              logg,
		LowBalanceThreshold: lowThreshold,
		Now:                 clock.Now,
	})
	require.NoError(t, err)
	return fixture{db: conn, svc: svc}
}

func (f fixture) fund(t *testing.T, companyID uuid.UUID, credits int) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Provision(ctx, companyID)
	require.NoError(t, err)
	if credits > 0 {
		_, err = f.svc.Purchase(ctx, PurchaseInput{
			CompanyID: companyID,
			Credits:   credits,
			Price:     decimal.NewFromInt(int64(credits) * 25),
			Currency:  "usd",
			Reference: "inv_test",
		})
		require.NoError(t, err)
	}
}

func (f fixture) countRows(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (f fixture) assertInSync(t *testing.T, companyID uuid.UUID) *ReconcileResult {
	t.Helper()
	res, err := f.svc.Reconcile(context.Background(), companyID)
	require.NoError(t, err)
	assert.True(t, res.InSync, "balance %d ledger %d", res.Balance, res.LedgerSum)
	return res
}

func TestProvisionIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()

	first, err := f.svc.Provision(context.Background(), companyID)
	require.NoError(t, err)
	second, err := f.svc.Provision(context.Background(), companyID)
	require.NoError(t, err)

	assert.Equal(t, 0, first.Balance)
	assert.Equal(t, 0, second.Balance)
	assert.EqualValues(t, 1, f.countRows(t, &models.CreditBalance{}, "company_id = ?", companyID))
}

func TestGetBalanceUnknownCompany(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.GetBalance(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPurchaseRecordsEntryNotificationAndEvent(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	_, err := f.svc.Provision(context.Background(), companyID)
	require.NoError(t, err)

	res, err := f.svc.Purchase(context.Background(), PurchaseInput{
		CompanyID: companyID,
		Credits:   10,
		Price:     decimal.RequireFromString("199.5"),
		Currency:  "eur",
		Reference: "pi_123",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Balance)
	assert.Equal(t, enums.CreditReasonPurchase, res.Entry.Reason)
	assert.Equal(t, 10, res.Entry.Amount)
	assert.Contains(t, string(res.Entry.Metadata), `"price":"199.50"`)
	assert.Contains(t, string(res.Entry.Metadata), `"currency":"EUR"`)
	assert.EqualValues(t, 1, f.countRows(t, &models.Notification{}, "company_id = ? AND type = ?", companyID, enums.NotificationTypeCreditsPurchased))
	assert.EqualValues(t, 1, f.countRows(t, &models.OutboxEvent{}, "aggregate_id = ? AND event_type = ?", companyID, enums.EventCreditsPurchased))
	f.assertInSync(t, companyID)
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	cases := []PurchaseInput{
		{CompanyID: companyID, Credits: 0, Price: decimal.NewFromInt(1), Currency: "USD"},
		{CompanyID: companyID, Credits: 1, Price: decimal.NewFromInt(-1), Currency: "USD"},
		{CompanyID: companyID, Credits: 1, Price: decimal.NewFromInt(1), Currency: "dollars"},
		{CompanyID: uuid.Nil, Credits: 1, Price: decimal.NewFromInt(1), Currency: "USD"},
	}
	for _, in := range cases {
		_, err := f.svc.Purchase(context.Background(), in)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v", in)
	}
}

func TestDebitChargesOncePerInvitation(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 3)
	invitationID := uuid.New()

	first, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: invitationID})
	require.NoError(t, err)
	second, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: invitationID})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, -1, first.Amount)
	balance, err := f.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Balance)
	assert.EqualValues(t, 1, f.countRows(t, &models.CreditLedgerEntry{}, "related_invitation_id = ? AND reason = ?", invitationID, enums.CreditReasonInviteConsumed))
	f.assertInSync(t, companyID)
}

func TestDebitInsufficientLeavesNoTrace(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 1)

	_, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 2, RelatedInvitationID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]any{"balance": 1, "required": 2}, typed.Details())

	balance, err := f.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Balance)
	assert.EqualValues(t, 0, f.countRows(t, &models.CreditLedgerEntry{}, "company_id = ? AND reason = ?", companyID, enums.CreditReasonInviteConsumed))
	f.assertInSync(t, companyID)
}

func TestDebitAtZeroBalance(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 0)

	_, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
}

func TestDebitTxRollsBackWithCaller(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 2)

	err := dbpkg.NewFromConn(f.db).WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := f.svc.DebitTx(context.Background(), tx, DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: uuid.New()}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "caller failed after debit")
	})
	require.Error(t, err)

	balance, err := f.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Balance)
	f.assertInSync(t, companyID)
}

func TestRefundIsAppliedOnce(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 1)
	invitationID := uuid.New()

	_, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: invitationID})
	require.NoError(t, err)

	refund := CreditInput{CompanyID: companyID, Amount: 1, Reason: enums.CreditReasonInviteRefunded, RelatedInvitationID: &invitationID}
	first, err := f.svc.Credit(context.Background(), refund)
	require.NoError(t, err)
	second, err := f.svc.Credit(context.Background(), refund)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balance, err := f.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Balance)
	f.assertInSync(t, companyID)
}

func TestCreditRejectsDebitReasonsAndBareRefunds(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 0)

	_, err := f.svc.Credit(context.Background(), CreditInput{CompanyID: companyID, Amount: 1, Reason: enums.CreditReasonInviteConsumed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Credit(context.Background(), CreditInput{CompanyID: companyID, Amount: 1, Reason: enums.CreditReasonInviteRefunded})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Credit(context.Background(), CreditInput{CompanyID: companyID, Amount: -1, Reason: enums.CreditReasonPurchase})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLowBalanceNotifiesOnCrossing(t *testing.T) {
	f := newFixture(t, 1)
	companyID := uuid.New()
	f.fund(t, companyID, 3)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: uuid.New()})
		require.NoError(t, err)
	}

	// 3 -> 2 stays above, 2 -> 1 crosses, 1 -> 0 is already below.
	assert.EqualValues(t, 1, f.countRows(t, &models.Notification{}, "company_id = ? AND type = ?", companyID, enums.NotificationTypeCreditsLow))
}

func TestAdjustCannotOverdraw(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 2)
	actor := uuid.New()

	res, err := f.svc.Adjust(context.Background(), AdjustInput{CompanyID: companyID, Delta: -1, Note: "goodwill reversal", ActorUserID: &actor})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Balance)
	assert.EqualValues(t, 1, f.countRows(t, &models.OutboxEvent{}, "aggregate_id = ? AND event_type = ?", companyID, enums.EventCreditsAdjusted))

	_, err = f.svc.Adjust(context.Background(), AdjustInput{CompanyID: companyID, Delta: -5, Note: "too much"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))

	_, err = f.svc.Adjust(context.Background(), AdjustInput{CompanyID: companyID, Delta: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.assertInSync(t, companyID)
}

func TestGetHistoryPagesNewestFirst(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 5)
	for i := 0; i < 4; i++ {
		_, err := f.svc.Debit(context.Background(), DebitInput{CompanyID: companyID, Amount: 1, RelatedInvitationID: uuid.New()})
		require.NoError(t, err)
	}

	var seen []models.CreditLedgerEntry
	cursor := ""
	for {
		page, err := f.svc.GetHistory(context.Background(), HistoryParams{CompanyID: companyID, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		seen = append(seen, page.Items...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	require.Len(t, seen, 5)
	assert.Equal(t, enums.CreditReasonPurchase, seen[4].Reason)
	for i := 1; i < len(seen); i++ {
		assert.False(t, seen[i].CreatedAt.After(seen[i-1].CreatedAt))
	}
}

func TestGetHistoryRejectsBadCursor(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 0)

	_, err := f.svc.GetHistory(context.Background(), HistoryParams{CompanyID: companyID, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newFixture(t, 0)
	companyID := uuid.New()
	f.fund(t, companyID, 4)

	require.NoError(t, f.db.Exec("UPDATE credit_balances SET balance = 7 WHERE company_id = ?", companyID).Error)

	res, err := f.svc.Reconcile(context.Background(), companyID)
	require.NoError(t, err)
	assert.False(t, res.InSync)
	assert.EqualValues(t, 4, res.LedgerSum)
	assert.EqualValues(t, 3, res.Drift)

	balance, err := f.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, 7, balance.Balance)
}

func TestListCompanyIDsWalksInOrder(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		f.fund(t, uuid.New(), 0)
	}

	first, err := f.svc.ListCompanyIDs(context.Background(), uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	rest, err := f.svc.ListCompanyIDs(context.Background(), first[1], 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.NotContains(t, first, rest[0])
}
