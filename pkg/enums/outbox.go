package enums

// OutboxAggregateType names the entity an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateInvitation    OutboxAggregateType = "assessment_invitation"
	AggregateCreditBalance OutboxAggregateType = "credit_balance"
)

// OutboxEventType is the routing key for a published event.
type OutboxEventType string

const (
	EventInvitationCreated   OutboxEventType = "invitation_created"
	EventInvitationCompleted OutboxEventType = "invitation_completed"
	EventInvitationRefunded  OutboxEventType = "invitation_refunded"
	EventInvitationExpired   OutboxEventType = "invitation_expired"
	EventCreditsPurchased    OutboxEventType = "credits_purchased"
	EventCreditsAdjusted     OutboxEventType = "credits_adjusted"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregateInvitation, AggregateCreditBalance}

	eventTypes = []OutboxEventType{
		EventInvitationCreated,
		EventInvitationCompleted,
		EventInvitationRefunded,
		EventInvitationExpired,
		EventCreditsPurchased,
		EventCreditsAdjusted,
	}
)

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

func (e OutboxEventType) IsValid() bool { return member(eventTypes, e) }

// Aggregate returns the aggregate an event type is emitted for, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventCreditsPurchased, EventCreditsAdjusted:
		return AggregateCreditBalance
	case EventInvitationCreated, EventInvitationCompleted, EventInvitationRefunded, EventInvitationExpired:
		return AggregateInvitation
	}
	return ""
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return lookup("aggregate type", aggregateTypes, value, false)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return lookup("event type", eventTypes, value, false)
}
