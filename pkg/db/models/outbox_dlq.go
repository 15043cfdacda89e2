package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/pkg/enums"
)

// OutboxDLQ is a parked copy of an outbox row the publisher gave up on.
// The original row stays in outbox_events with its attempt count pinned.
type OutboxDLQ struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID uuid.UUID `gorm:"column:event_id;type:uuid;not null"`

	// Copied from the source row.
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	CompanyID     *uuid.UUID                `gorm:"column:company_id;type:uuid"`
	Payload       json.RawMessage           `gorm:"column:payload_json;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`

	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	FailedAt     time.Time                  `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

// ParkOutboxEvent builds the dead-letter copy of event.
func ParkOutboxEvent(event OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, failedAt time.Time) OutboxDLQ {
	parked := OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		CompanyID:     event.CompanyID,
		Payload:       event.Payload,
		AttemptCount:  event.AttemptCount,
		ErrorReason:   reason,
		FailedAt:      failedAt,
	}
	if cause != nil {
		msg := cause.Error()
		parked.ErrorMessage = &msg
	}
	return parked
}
