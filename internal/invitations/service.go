package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	"github.com/talentloop/talentloop-backend/pkg/config"
	dbpkg "github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
	"github.com/talentloop/talentloop-backend/pkg/outbox/payloads"
	"github.com/talentloop/talentloop-backend/pkg/pagination"
)

// Service drives the invitation state machine. Only PENDING has outgoing
// transitions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.AssessmentInvitation, error)
	Complete(ctx context.Context, input CompleteInput) (*models.AssessmentInvitation, error)
	MarkExpiredNoRefund(ctx context.Context, input ExpireInput) (*models.AssessmentInvitation, error)
	Get(ctx context.Context, companyID, invitationID uuid.UUID) (*models.AssessmentInvitation, error)
	ListForCompany(ctx context.Context, params ListParams) (*ListResult, error)
	ListForCandidate(ctx context.Context, params CandidateListParams) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type debiter interface {
	DebitTx(ctx context.Context, tx *gorm.DB, input credits.DebitInput) (*models.CreditLedgerEntry, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

// CreateInput describes a recruiter's request to invite a candidate.
type CreateInput struct {
	CompanyID     uuid.UUID
	JobID         string
	TemplateID    string
	CandidateRef  string
	TimeLimitDays int
	ActorUserID   *uuid.UUID
}

// CompleteInput identifies the invitation being submitted. A non-empty
// CandidateRef restricts completion to that candidate.
type CompleteInput struct {
	InvitationID uuid.UUID
	CandidateRef string
}

type ExpireInput struct {
	InvitationID uuid.UUID
	Reason       string
	ActorUserID  *uuid.UUID
}

type ListParams struct {
	CompanyID    uuid.UUID
	Status       string
	CandidateRef string
	Limit        int
	Cursor       string
}

type CandidateListParams struct {
	CandidateRef string
	Limit        int
	Cursor       string
}

type ListResult struct {
	Items  []models.AssessmentInvitation `json:"items"`
	Cursor string                        `json:"cursor"`
}

type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Credits    debiter
	Notifier   notifier
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Config     config.CreditsConfig
	Now        func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	credits  debiter
	notifier notifier
	outbox   outbox.Emitter
	logg     *logger.Logger
	cfg      config.CreditsConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("invitations repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credits service required")
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
	cfg := params.Config
	if cfg.InviteCost <= 0 {
		cfg.InviteCost = 1
	}
	if cfg.MaxInviteDays <= 0 {
		cfg.MaxInviteDays = 90
	}
	if cfg.DefaultInviteDays <= 0 || cfg.DefaultInviteDays > cfg.MaxInviteDays {
		cfg.DefaultInviteDays = 7
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		tx:       params.TxRunner,
		credits:  params.Credits,
		notifier: params.Notifier,
		outbox:   params.Outbox,
		logg:     params.Logger,
		cfg:      cfg,
		now:      now,
	}, nil
}

// Create inserts the invitation and pays for it in one transaction. When the
// debit fails neither the invitation nor a ledger entry survives.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.AssessmentInvitation, error) {
	invitation, err := s.buildInvitation(input)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(s.logg.WithCompanyID(ctx, input.CompanyID.String()), map[string]any{
		"invitation_id": invitation.ID.String(),
		"job_id":        invitation.JobID,
	})

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, invitation); err != nil {
			return dbpkg.WrapStoreError(err, "create invitation")
		}
		if _, err := s.credits.DebitTx(ctx, tx, credits.DebitInput{
			CompanyID:           invitation.CompanyID,
			Amount:              invitation.DebitAmount,
			RelatedInvitationID: invitation.ID,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventInvitationCreated, invitation, input.ActorUserID, payloads.InvitationCreatedEvent{
			InvitationID: invitation.ID,
			CompanyID:    invitation.CompanyID,
			JobID:        invitation.JobID,
			TemplateID:   invitation.TemplateID,
			CandidateRef: invitation.CandidateRef,
			DebitAmount:  invitation.DebitAmount,
			ExpiresAt:    invitation.ExpiresAt,
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficient) {
			s.logg.Info(logCtx, "invitation rejected for insufficient credits")
		} else {
			s.logg.Error(logCtx, "create invitation failed", err)
		}
		return nil, err
	}
	s.logg.Info(logCtx, "invitation created")
	return invitation, nil
}

func (s *service) buildInvitation(input CreateInput) (*models.AssessmentInvitation, error) {
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	jobID := strings.TrimSpace(input.JobID)
	templateID := strings.TrimSpace(input.TemplateID)
	candidateRef := normalizeCandidateRef(input.CandidateRef)
	missing := make([]string, 0, 3)
	if jobID == "" {
		missing = append(missing, "jobId")
	}
	if templateID == "" {
		missing = append(missing, "templateId")
	}
	if candidateRef == "" {
		missing = append(missing, "candidateRef")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").WithDetails(map[string]any{"fields": missing})
	}
	days := input.TimeLimitDays
	if days == 0 {
		days = s.cfg.DefaultInviteDays
	}
	if days < 1 || days > s.cfg.MaxInviteDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("timeLimitDays must be between 1 and %d", s.cfg.MaxInviteDays))
	}

	now := s.now().UTC()
	return &models.AssessmentInvitation{
		ID:              uuid.New(),
		CompanyID:       input.CompanyID,
		JobID:           jobID,
		TemplateID:      templateID,
		CandidateRef:    candidateRef,
		Status:          enums.InvitationStatusPending,
		CreditDebited:   true,
		DebitAmount:     s.cfg.InviteCost,
		CreatedByUserID: input.ActorUserID,
		ExpiresAt:       now.AddDate(0, 0, days),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Complete records the candidate's submission. It never touches the ledger; a
// completed invitation simply stops being refundable.
func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.AssessmentInvitation, error) {
	if input.InvitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	candidateRef := normalizeCandidateRef(input.CandidateRef)

	var result *models.AssessmentInvitation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.InvitationID)
		if err != nil {
			return notFoundOr(err, "load invitation")
		}
		if candidateRef != "" && current.CandidateRef != candidateRef {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}

		now := s.now().UTC()
		rows, err := repo.TransitionFromPending(ctx, current.ID, enums.InvitationStatusCompleted, now)
		if err != nil {
			return dbpkg.WrapStoreError(err, "complete invitation")
		}
		if rows == 0 {
			latest, err := repo.FindByID(ctx, current.ID)
			if err != nil {
				return notFoundOr(err, "reload invitation")
			}
			if latest.Status == enums.InvitationStatusCompleted {
				result = latest
				return nil
			}
			return invalidTransition(latest, enums.InvitationStatusCompleted)
		}

		updated, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return dbpkg.WrapStoreError(err, "reload invitation")
		}
		if err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			CompanyID: updated.CompanyID,
			Type:      enums.NotificationTypeInvitationCompleted,
			Title:     "Assessment completed",
			Message:   fmt.Sprintf("A candidate completed the assessment for job %s.", updated.JobID),
			Link:      "/invitations/" + updated.ID.String(),
		}); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventInvitationCompleted, updated, nil, payloads.InvitationCompletedEvent{
			InvitationID: updated.ID,
			CompanyID:    updated.CompanyID,
			CandidateRef: updated.CandidateRef,
			CompletedAt:  now,
		}); err != nil {
			return err
		}
		result = updated
		s.logg.Info(s.invitationCtx(ctx, updated), "invitation completed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkExpiredNoRefund closes a pending invitation without returning its
// credit. EXPIRED rows are never picked up by the refund run.
func (s *service) MarkExpiredNoRefund(ctx context.Context, input ExpireInput) (*models.AssessmentInvitation, error) {
	if input.InvitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	reason := strings.TrimSpace(input.Reason)

	var result *models.AssessmentInvitation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		rows, err := repo.TransitionFromPending(ctx, input.InvitationID, enums.InvitationStatusExpired, now)
		if err != nil {
			return dbpkg.WrapStoreError(err, "expire invitation")
		}
		latest, err := repo.FindByID(ctx, input.InvitationID)
		if err != nil {
			return notFoundOr(err, "load invitation")
		}
		if rows == 0 {
			if latest.Status == enums.InvitationStatusExpired {
				result = latest
				return nil
			}
			return invalidTransition(latest, enums.InvitationStatusExpired)
		}
		if err := s.emit(ctx, tx, enums.EventInvitationExpired, latest, input.ActorUserID, payloads.InvitationExpiredEvent{
			InvitationID: latest.ID,
			CompanyID:    latest.CompanyID,
			Reason:       reason,
			ExpiredAt:    now,
		}); err != nil {
			return err
		}
		result = latest
		s.logg.Info(s.logg.WithField(s.invitationCtx(ctx, latest), "reason", reason), "invitation expired without refund")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the invitation only when it belongs to companyID.
func (s *service) Get(ctx context.Context, companyID, invitationID uuid.UUID) (*models.AssessmentInvitation, error) {
	if companyID == uuid.Nil || invitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id and invitation id required")
	}
	invitation, err := s.repo.FindByID(ctx, invitationID)
	if err != nil {
		return nil, notFoundOr(err, "load invitation")
	}
	if invitation.CompanyID != companyID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
	}
	return invitation, nil
}

func (s *service) ListForCompany(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	filter := CompanyFilter{CompanyID: params.CompanyID, CandidateRef: normalizeCandidateRef(params.CandidateRef)}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status, err := enums.ParseInvitationStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &status
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForCompany(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "list invitations")
	}
	return buildListResult(rows, params.Limit), nil
}

func (s *service) ListForCandidate(ctx context.Context, params CandidateListParams) (*ListResult, error) {
	candidateRef := normalizeCandidateRef(params.CandidateRef)
	if candidateRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "candidate reference required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForCandidate(ctx, candidateRef, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, dbpkg.WrapStoreError(err, "list candidate invitations")
	}
	return buildListResult(rows, params.Limit), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, invitation *models.AssessmentInvitation, actorID *uuid.UUID, data any) error {
	companyID := invitation.CompanyID
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInvitation,
		AggregateID:   invitation.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, CompanyID: &companyID},
		Data:          data,
	})
	if err != nil {
		return dbpkg.WrapStoreError(err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) invitationCtx(ctx context.Context, invitation *models.AssessmentInvitation) context.Context {
	return s.logg.WithFields(s.logg.WithCompanyID(ctx, invitation.CompanyID.String()), map[string]any{
		"invitation_id": invitation.ID.String(),
		"status":        invitation.Status,
	})
}

func buildListResult(rows []models.AssessmentInvitation, limit int) *ListResult {
	items, next := pagination.Trim(rows, limit, func(inv models.AssessmentInvitation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}
	})
	if items == nil {
		items = []models.AssessmentInvitation{}
	}
	return &ListResult{Items: items, Cursor: next}
}

func invalidTransition(current *models.AssessmentInvitation, target enums.InvitationStatus) error {
	return pkgerrors.New(
		pkgerrors.CodeInvalidState,
		fmt.Sprintf("invitation is %s and cannot become %s", current.Status, target),
	).WithDetails(map[string]any{"status": current.Status, "target": target})
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "invitation not found")
	}
	return dbpkg.WrapStoreError(err, message)
}

// Candidate references are emails or external ids; emails compare
// case-insensitively.
func normalizeCandidateRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "@") {
		return strings.ToLower(ref)
	}
	return ref
}
