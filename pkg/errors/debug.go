package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChainDepth bounds Dump output for deeply wrapped errors.
const maxChainDepth = 10

// constraintHints explains schema constraints in ledger terms for on-call.
var constraintHints = map[string]string{
	"chk_credit_balances_non_negative":         "debit would take the company balance below zero",
	"chk_credit_ledger_entries_amount_nonzero": "ledger entries must move at least one credit",
	"ux_credit_ledger_invitation_reason":       "invitation already has a ledger entry for this reason",
	"chk_assessment_invitations_debit_amount":  "invitation debit amount must not be negative",
}

// PGDiagnostics holds what either Postgres driver reported about a failed statement.
type PGDiagnostics struct {
	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	PGHint       string `json:"pg_hint,omitempty"`
}

// LogFields returns the non-empty diagnostics keyed for structured logs.
func (p PGDiagnostics) LogFields() map[string]any {
	fields := map[string]any{}
	for k, v := range map[string]string{
		"pg_code":       p.PGCode,
		"pg_constraint": p.PGConstraint,
		"pg_table":      p.PGTable,
		"pg_column":     p.PGColumn,
		"pg_detail":     p.PGDetail,
		"pg_message":    p.PGMessage,
		"pg_hint":       p.PGHint,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

func pgDiagnostics(err error) (PGDiagnostics, bool) {
	var p PGDiagnostics
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		p = PGDiagnostics{
			PGCode:       pgxErr.Code,
			PGConstraint: pgxErr.ConstraintName,
			PGTable:      pgxErr.TableName,
			PGColumn:     pgxErr.ColumnName,
			PGDetail:     pgxErr.Detail,
			PGMessage:    pgxErr.Message,
		}
	} else if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		p = PGDiagnostics{
			PGCode:       string(pqErr.Code),
			PGConstraint: pqErr.Constraint,
			PGTable:      pqErr.Table,
			PGColumn:     pqErr.Column,
			PGDetail:     pqErr.Detail,
			PGMessage:    pqErr.Message,
		}
	} else {
		return p, false
	}
	p.PGHint = constraintHints[p.PGConstraint]
	return p, true
}

// ErrorDump is the log-only view of an error: typed code, unwrap chain and
// any Postgres diagnostics.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	PGDiagnostics
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e, depth := err, 0; e != nil; e, depth = errors.Unwrap(e), depth+1 {
		if depth == maxChainDepth {
			d.Chain = append(d.Chain, "...")
			break
		}
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PGDiagnostics, _ = pgDiagnostics(err)
	return d
}
