package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/api/middleware"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
)

func recruiterRequest(method, target, body string, companyID, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.WithCompanyID(req.Context(), companyID.String())
	ctx = middleware.WithUserID(ctx, userID.String())
	ctx = middleware.WithRole(ctx, string(enums.MemberRoleRecruiter))
	return req.WithContext(ctx)
}

func TestCreateInvitationSuccess(t *testing.T) {
	companyID := uuid.New()
	userID := uuid.New()
	var got invitations.CreateInput
	svc := &testInvitationsService{
		createFn: func(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error) {
			got = input
			return &models.AssessmentInvitation{
				ID:            uuid.New(),
				CompanyID:     input.CompanyID,
				Status:        enums.InvitationStatusPending,
				CreditDebited: true,
				DebitAmount:   1,
			}, nil
		},
	}

	req := recruiterRequest(http.MethodPost, "/api/v1/invitations",
		`{"jobId":"job-1","templateId":"tpl-1","candidateRef":"ana@example.com","timeLimitDays":3}`, companyID, userID)
	resp := httptest.NewRecorder()
	CreateInvitation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.CompanyID != companyID || got.JobID != "job-1" || got.TemplateID != "tpl-1" || got.TimeLimitDays != 3 {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.ActorUserID == nil || *got.ActorUserID != userID {
		t.Fatalf("expected actor %s got %v", userID, got.ActorUserID)
	}
	var data models.AssessmentInvitation
	decodeData(t, resp, &data)
	if data.Status != enums.InvitationStatusPending || !data.CreditDebited {
		t.Fatalf("unexpected invitation %+v", data)
	}
}

func TestCreateInvitationInsufficientCreditsIsPaymentRequired(t *testing.T) {
	svc := &testInvitationsService{
		createFn: func(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient credits").
				WithDetails(map[string]any{"balance": 0, "required": 1})
		},
	}

	req := recruiterRequest(http.MethodPost, "/api/v1/invitations",
		`{"jobId":"job-1","templateId":"tpl-1","candidateRef":"ana@example.com"}`, uuid.New(), uuid.New())
	resp := httptest.NewRecorder()
	CreateInvitation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp)
	if apiErr.Code != string(pkgerrors.CodeInsufficient) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
	details, ok := apiErr.Details.(map[string]any)
	if !ok || details["action"] != "buy_credits" {
		t.Fatalf("expected buy_credits hint, got %v", apiErr.Details)
	}
}

func TestCreateInvitationHidesInternalFailures(t *testing.T) {
	svc := &testInvitationsService{
		createFn: func(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("pq: connection reset"), "debit credits")
		},
	}

	req := recruiterRequest(http.MethodPost, "/api/v1/invitations",
		`{"jobId":"job-1","templateId":"tpl-1","candidateRef":"ana@example.com"}`, uuid.New(), uuid.New())
	resp := httptest.NewRecorder()
	CreateInvitation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp)
	if strings.Contains(apiErr.Message, "pq") || apiErr.Details != nil {
		t.Fatalf("internal failure leaked: %+v", apiErr)
	}
}

func TestCreateInvitationValidatesBody(t *testing.T) {
	called := false
	svc := &testInvitationsService{
		createFn: func(ctx context.Context, input invitations.CreateInput) (*models.AssessmentInvitation, error) {
			called = true
			return nil, nil
		},
	}

	req := recruiterRequest(http.MethodPost, "/api/v1/invitations", `{"jobId":"job-1"}`, uuid.New(), uuid.New())
	resp := httptest.NewRecorder()
	CreateInvitation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("service must not run for invalid body")
	}
}

func TestListInvitationsPassesFilters(t *testing.T) {
	companyID := uuid.New()
	var got invitations.ListParams
	svc := &testInvitationsService{
		listFn: func(ctx context.Context, params invitations.ListParams) (*invitations.ListResult, error) {
			got = params
			return &invitations.ListResult{}, nil
		},
	}

	req := recruiterRequest(http.MethodGet, "/api/v1/invitations?status=PENDING&candidate=ana@example.com&limit=10&cursor=c1", "", companyID, uuid.New())
	resp := httptest.NewRecorder()
	ListInvitations(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.CompanyID != companyID || got.Status != "PENDING" || got.CandidateRef != "ana@example.com" || got.Limit != 10 || got.Cursor != "c1" {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestGetInvitationScopedToCompany(t *testing.T) {
	companyID := uuid.New()
	invitationID := uuid.New()
	svc := &testInvitationsService{
		getFn: func(ctx context.Context, cid, iid uuid.UUID) (*models.AssessmentInvitation, error) {
			if cid != companyID || iid != invitationID {
				t.Fatalf("unexpected ids %s %s", cid, iid)
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		},
	}

	req := recruiterRequest(http.MethodGet, "/api/v1/invitations/"+invitationID.String(), "", companyID, uuid.New())
	req = addRouteParam(req, "invitationId", invitationID.String())
	resp := httptest.NewRecorder()
	GetInvitation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
