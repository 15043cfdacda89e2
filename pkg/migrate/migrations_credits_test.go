package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talentloop/talentloop-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCreditMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_credit_tables")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS credit_balances",
		"CHECK (balance >= 0)",
		"CREATE TABLE IF NOT EXISTS credit_ledger_entries",
		"ON credit_ledger_entries (related_invitation_id, reason)",
		"WHERE related_invitation_id IS NOT NULL",
		"DROP TABLE IF EXISTS credit_ledger_entries",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvitationMigrationIndexesReclaimScan(t *testing.T) {
	content := readMigration(t, "create_assessment_invitations")
	checks := []string{
		"CREATE TYPE invitation_status AS ENUM ('PENDING', 'COMPLETED', 'REFUNDED', 'EXPIRED')",
		"ON assessment_invitations (status, expires_at, id)",
		"ON assessment_invitations (company_id, candidate_ref)",
		"DROP TABLE IF EXISTS assessment_invitations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Candidate Email!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_candidate_email.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}
