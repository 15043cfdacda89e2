package enums

// InvitationStatus maps to the invitation_status enum in Postgres.
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "PENDING"
	InvitationStatusCompleted InvitationStatus = "COMPLETED"
	InvitationStatusRefunded  InvitationStatus = "REFUNDED"
	InvitationStatusExpired   InvitationStatus = "EXPIRED"
)

var invitationStatuses = []InvitationStatus{
	InvitationStatusPending,
	InvitationStatusCompleted,
	InvitationStatusRefunded,
	InvitationStatusExpired,
}

func (s InvitationStatus) IsValid() bool { return member(invitationStatuses, s) }

// IsTerminal reports whether no further transitions are allowed.
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationStatusPending
}

// ParseInvitationStatus converts raw input into InvitationStatus. Matching is case-insensitive
// so query strings like ?status=pending work.
func ParseInvitationStatus(value string) (InvitationStatus, error) {
	return lookup("invitation status", invitationStatuses, value, true)
}
