package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInvalidState, status: http.StatusConflict, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficient, status: http.StatusPaymentRequired, publicMsg: "insufficient credits", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestOnlyServerSideCodesHideTheirMessage(t *testing.T) {
	for code := range metadataByCode {
		hidden := code == CodeInternal || code == CodeDependency
		if MetadataFor(code).ExposeMessage == hidden {
			t.Fatalf("code %s: expose=%v", code, MetadataFor(code).ExposeMessage)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	if got := New(CodeNotFound, "invitation not found").Error(); got != "NOT_FOUND: invitation not found" {
		t.Fatalf("unexpected %q", got)
	}
	got := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "load balance").Error()
	if got != "DEPENDENCY_ERROR: load balance: dial tcp: refused" {
		t.Fatalf("unexpected %q", got)
	}
	if Newf(CodeValidation, "limit must be <= %d", 100).Message() != "limit must be <= 100" {
		t.Fatal("Newf did not format")
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeOfFollowsWrappedChain(t *testing.T) {
	typed := New(CodeInsufficient, "balance too low")
	wrapped := fmt.Errorf("create invitation: %w", typed)
	if got := CodeOf(wrapped); got != CodeInsufficient {
		t.Fatalf("expected %s got %s", CodeInsufficient, got)
	}
	if !IsCode(wrapped, CodeInsufficient) {
		t.Fatalf("IsCode should match through fmt wrapping")
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("untyped errors should default to internal, got %s", got)
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_credit_ledger_invitation_reason", TableName: "credit_ledger_entries"}
	err := Wrap(CodeConflict, pgErr, "insert ledger entry")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected dump code %s got %s", CodeConflict, dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_credit_ledger_invitation_reason" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	if dump.PGHint == "" {
		t.Fatalf("expected hint for known ledger constraint")
	}
}

func TestDumpReadsLibPQErrorsAndCapsChain(t *testing.T) {
	var err error = &pq.Error{Code: "23514", Constraint: "chk_credit_balances_non_negative", Table: "credit_balances"}
	for i := 0; i < 20; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}

	dump := Dump(err)
	if dump.PGCode != "23514" || dump.PGTable != "credit_balances" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if dump.PGHint == "" {
		t.Fatalf("expected hint for balance check")
	}
	if len(dump.Chain) != maxChainDepth+1 || dump.Chain[maxChainDepth] != "..." {
		t.Fatalf("expected capped chain, got %d entries", len(dump.Chain))
	}
}

func TestPGDiagnosticsLogFieldsSkipsBlanks(t *testing.T) {
	fields := PGDiagnostics{PGCode: "23514", PGConstraint: "chk_credit_balances_non_negative"}.LogFields()
	if len(fields) != 2 || fields["pg_code"] != "23514" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if len((PGDiagnostics{}).LogFields()) != 0 {
		t.Fatal("empty diagnostics should log nothing")
	}
}
