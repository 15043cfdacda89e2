package enums

// CreditReason maps to the credit_reason enum in Postgres.
type CreditReason string

const (
	CreditReasonPurchase       CreditReason = "PURCHASE"
	CreditReasonInviteConsumed CreditReason = "INVITE_CONSUMED"
	CreditReasonInviteRefunded CreditReason = "INVITE_REFUNDED"
	CreditReasonAdjustment     CreditReason = "ADJUSTMENT"
)

var creditReasons = []CreditReason{
	CreditReasonPurchase,
	CreditReasonInviteConsumed,
	CreditReasonInviteRefunded,
	CreditReasonAdjustment,
}

func (r CreditReason) IsValid() bool { return member(creditReasons, r) }

// IsCredit reports whether the reason is allowed to add credits to a balance.
func (r CreditReason) IsCredit() bool {
	switch r {
	case CreditReasonPurchase, CreditReasonInviteRefunded, CreditReasonAdjustment:
		return true
	}
	return false
}

// ParseCreditReason converts raw input into CreditReason.
func ParseCreditReason(value string) (CreditReason, error) {
	return lookup("credit reason", creditReasons, value, false)
}
