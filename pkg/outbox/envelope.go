package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. The reclaimer and other
// system jobs set only CompanyID.
type ActorRef struct {
	UserID    *uuid.UUID `json:"userId,omitempty"`
	CompanyID *uuid.UUID `json:"companyId,omitempty"`
	Role      string     `json:"role,omitempty"`
}

func (a *ActorRef) company() *uuid.UUID {
	if a == nil {
		return nil
	}
	return a.CompanyID
}

// PayloadEnvelope wraps every outbox payload. Consumers dedupe on EventID
// and switch on Version before decoding Data.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// CompanyID returns the tenant the event belongs to, if any.
func (e PayloadEnvelope) CompanyID() *uuid.UUID {
	return e.Actor.company()
}
