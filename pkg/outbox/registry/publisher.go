package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/pkg/config"
	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
	"github.com/talentloop/talentloop-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: where it is published and how its
// payload is decoded.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

// ResolvedEvent is an outbox row that passed every routing check.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// aggregateKeyed payloads name the aggregate they describe.
type aggregateKeyed interface {
	AggregateKey() uuid.UUID
}

// NonRetryableError marks a failure that will not change on retry, such as a
// malformed row or a rejected message.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func unroutable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry is the closed set of event types the publisher will forward.
type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		newPayload:    func() any { return new(T) },
	}
}

// NewEventRegistry routes every known event to the configured events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("events topic is required")
	}
	reg := &EventRegistry{
		entries:  map[enums.OutboxEventType]EventDescriptor{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, desc := range []EventDescriptor{
		describe[payloads.InvitationCreatedEvent](enums.EventInvitationCreated, enums.AggregateInvitation),
		describe[payloads.InvitationCompletedEvent](enums.EventInvitationCompleted, enums.AggregateInvitation),
		describe[payloads.InvitationRefundedEvent](enums.EventInvitationRefunded, enums.AggregateInvitation),
		describe[payloads.InvitationExpiredEvent](enums.EventInvitationExpired, enums.AggregateInvitation),
		describe[payloads.CreditsPurchasedEvent](enums.EventCreditsPurchased, enums.AggregateCreditBalance),
		describe[payloads.CreditsAdjustedEvent](enums.EventCreditsAdjusted, enums.AggregateCreditBalance),
	} {
		desc.Topic = cfg.EventsTopic
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// EventTypes lists the routable event types in sorted order.
func (r *EventRegistry) EventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.entries))
	for eventType := range r.entries {
		out = append(out, eventType)
	}
	slices.Sort(out)
	return out
}

// Resolve checks the row against its descriptor and decodes the payload. All
// failures are NonRetryableError since the row itself is at fault.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, unroutable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, unroutable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, unroutable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, unroutable("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, unroutable("payload missing for %s", event.EventType)
	}

	payload := desc.newPayload()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, unroutable("decode %s payload: %w", event.EventType, err)
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, unroutable("invalid %s payload: %w", event.EventType, err)
	}
	if keyed, ok := payload.(aggregateKeyed); ok && keyed.AggregateKey() != event.AggregateID {
		return nil, unroutable("%s payload belongs to %s, row aggregate is %s", event.EventType, keyed.AggregateKey(), event.AggregateID)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
