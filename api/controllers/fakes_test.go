package controllers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
)

type testCreditsService struct {
	provisionFn func(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error)
	balanceFn   func(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error)
	historyFn   func(ctx context.Context, params credits.HistoryParams) (*credits.HistoryResult, error)
	purchaseFn  func(ctx context.Context, input credits.PurchaseInput) (*credits.MovementResult, error)
	adjustFn    func(ctx context.Context, input credits.AdjustInput) (*credits.MovementResult, error)
	reconcileFn func(ctx context.Context, companyID uuid.UUID) (*credits.ReconcileResult, error)
}

func (s *testCreditsService) Provision(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error) {
	if s.provisionFn != nil {
		return s.provisionFn(ctx, companyID)
	}
	return &models.CreditBalance{CompanyID: companyID}, nil
}

func (s *testCreditsService) GetBalance(ctx context.Context, companyID uuid.UUID) (*models.CreditBalance, error) {
	if s.balanceFn != nil {
		return s.balanceFn(ctx, companyID)
	}
	return &models.CreditBalance{CompanyID: companyID}, nil
}

func (s *testCreditsService) GetHistory(ctx context.Context, params credits.HistoryParams) (*credits.HistoryResult, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, params)
	}
	return &credits.HistoryResult{}, nil
}

func (s *testCreditsService) Debit(ctx context.Context, input credits.DebitInput) (*models.CreditLedgerEntry, error) {
	return nil, nil
}

func (s *testCreditsService) DebitTx(ctx context.Context, tx *gorm.DB, input credits.DebitInput) (*models.CreditLedgerEntry, error) {
	return nil, nil
}

func (s *testCreditsService) Credit(ctx context.Context, input credits.CreditInput) (*models.CreditLedgerEntry, error) {
	return nil, nil
}

func (s *testCreditsService) CreditTx(ctx context.Context, tx *gorm.DB, input credits.CreditInput) (*models.CreditLedgerEntry, error) {
	return nil, nil
}

func (s *testCreditsService) Purchase(ctx context.Context, input credits.PurchaseInput) (*credits.MovementResult, error) {
	if s.purchaseFn != nil {
		return s.purchaseFn(ctx, input)
	}
	return &credits.MovementResult{}, nil
}

func (s *testCreditsService) Adjust(ctx context.Context, input credits.AdjustInput) (*credits.MovementResult, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, input)
	}
	return &credits.MovementResult{}, nil
}

func (s *testCreditsService) Reconcile(ctx context.Context, companyID uuid.UUID) (*credits.ReconcileResult, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, companyID)
	}
	return &credits.ReconcileResult{CompanyID: companyID, InSync: true}, nil
}

func (s *testCreditsService) ListCompanyIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

type testInvitationsService struct {
	createFn           func(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error)
	completeFn         func(ctx context.Context, input invitations.CompleteInput) (*models.AssessmentInvitation, error)
	expireFn           func(ctx context.Context, input invitations.ExpireInput) (*models.AssessmentInvitation, error)
	getFn              func(ctx context.Context, companyID, invitationID uuid.UUID) (*models.AssessmentInvitation, error)
	listFn             func(ctx context.Context, params invitations.ListParams) (*invitations.ListResult, error)
	listForCandidateFn func(ctx context.Context, params invitations.CandidateListParams) (*invitations.ListResult, error)
}

func (s *testInvitationsService) Create(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.AssessmentInvitation{ID: uuid.New(), CompanyID: input.CompanyID}, nil
}

func (s *testInvitationsService) Complete(ctx context.Context, input invitations.CompleteInput) (*models.AssessmentInvitation, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, input)
	}
	return &models.AssessmentInvitation{ID: input.InvitationID}, nil
}

func (s *testInvitationsService) MarkExpiredNoRefund(ctx context.Context, input invitations.ExpireInput) (*models.AssessmentInvitation, error) {
	if s.expireFn != nil {
		return s.expireFn(ctx, input)
	}
	return &models.AssessmentInvitation{ID: input.InvitationID}, nil
}

func (s *testInvitationsService) Get(ctx context.Context, companyID, invitationID uuid.UUID) (*models.AssessmentInvitation, error) {
	if s.getFn != nil {
		return s.getFn(ctx, companyID, invitationID)
	}
	return &models.AssessmentInvitation{ID: invitationID, CompanyID: companyID}, nil
}

func (s *testInvitationsService) ListForCompany(ctx context.Context, params invitations.ListParams) (*invitations.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &invitations.ListResult{}, nil
}

func (s *testInvitationsService) ListForCandidate(ctx context.Context, params invitations.CandidateListParams) (*invitations.ListResult, error) {
	if s.listForCandidateFn != nil {
		return s.listForCandidateFn(ctx, params)
	}
	return &invitations.ListResult{}, nil
}
