package enums

import "testing"

func TestCreditReasonIsCredit(t *testing.T) {
	cases := map[CreditReason]bool{
		CreditReasonPurchase:       true,
		CreditReasonInviteRefunded: true,
		CreditReasonAdjustment:     true,
		CreditReasonInviteConsumed: false,
		CreditReason("BOGUS"):      false,
	}
	for reason, want := range cases {
		if got := reason.IsCredit(); got != want {
			t.Fatalf("%s.IsCredit() = %v, want %v", reason, got, want)
		}
	}
}

func TestParseInvitationStatusIgnoresCase(t *testing.T) {
	got, err := ParseInvitationStatus("pending")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != InvitationStatusPending {
		t.Fatalf("expected PENDING got %s", got)
	}
	if _, err := ParseInvitationStatus("archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestInvitationStatusTerminal(t *testing.T) {
	if InvitationStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, status := range []InvitationStatus{InvitationStatusCompleted, InvitationStatusRefunded, InvitationStatusExpired} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
}

func TestMemberRoleCompanyMembership(t *testing.T) {
	if !MemberRoleRecruiter.IsCompanyMember() || !MemberRoleCompanyAdmin.IsCompanyMember() {
		t.Fatal("recruiters and company admins act for a company")
	}
	if MemberRoleCandidate.IsCompanyMember() || MemberRolePlatformAdmin.IsCompanyMember() {
		t.Fatal("candidates and platform admins are not company members")
	}
}

func TestOutboxDLQErrorReasonValidity(t *testing.T) {
	for _, r := range []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable} {
		if !r.IsValid() {
			t.Fatalf("%s should be valid", r)
		}
	}
	if OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatalf("unknown reason accepted")
	}
}

func TestLookupTrimsAndFolds(t *testing.T) {
	got, err := ParseNotificationType(" Credits_Low ")
	if err != nil || got != NotificationTypeCreditsLow {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := ParseOutboxEventType("INVITATION_CREATED"); err == nil {
		t.Fatal("event types are case sensitive")
	}
	if _, err := ParseOutboxAggregateType("credit_balance"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventTypesBelongToOneAggregate(t *testing.T) {
	for _, e := range eventTypes {
		if !e.Aggregate().IsValid() {
			t.Fatalf("%s has no aggregate", e)
		}
	}
	if OutboxEventType("order_created").Aggregate() != "" {
		t.Fatal("unknown event mapped to an aggregate")
	}
}
