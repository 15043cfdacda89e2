package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/talentloop/talentloop-backend/pkg/db/models"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/outbox/registry"
)

// delivery tracks one row from resolution to broker acknowledgement.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	// err is set when the row failed before or during publish.
	err error
}

// processBatch claims up to batchSize rows, hands all of them to the
// broker, then settles each row once its acknowledgement arrives. Only
// bookkeeping failures abort the transaction.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		sendCtx, cancel := context.WithTimeout(ctx, batchPublishTimeout)
		defer cancel()

		deliveries := make([]*delivery, len(events))
		for i, event := range events {
			deliveries[i] = s.send(sendCtx, event)
		}
		for _, d := range deliveries {
			if d.err == nil {
				_, d.err = d.result.Get(sendCtx)
			}
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) send(ctx context.Context, event models.OutboxEvent) *delivery {
	d := &delivery{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.err = err
		return d
	}
	d.resolved = resolved
	topic := d.resolved.Descriptor.Topic
	pub := s.topics(topic)
	if pub == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
		return d
	}
	d.result = pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(d),
	})
	if d.result == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	return d
}

// settle records the outcome of one delivery on the row.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	event := d.event
	ctx = s.logg.WithFields(ctx, logFields(d))
	eventType := string(event.EventType)

	if d.resolved == nil {
		return s.park(ctx, tx, event, enums.OutboxDLQReasonUnroutable, d.err)
	}
	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(ctx, "outbox event published")
		return nil
	}

	var rejected registry.NonRetryableError
	if errors.As(d.err, &rejected) {
		return s.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, d.err)
	}
	if attempt := event.AttemptCount + 1; attempt >= s.maxAttempts {
		return s.park(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", attempt, d.err))
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", d.err.Error()), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	s.metrics.IncRetried(eventType)
	return nil
}

// park copies the row to the DLQ and pins it so it is never claimed again.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dlq")

	if err := s.dlq.InsertTx(tx, models.ParkOutboxEvent(event, reason, cause, s.now().UTC())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

// messageAttributes lets subscribers filter without decoding the body.
// The row's company wins over the one carried by the envelope actor.
func messageAttributes(d *delivery) map[string]string {
	event, env := d.event, d.resolved.Envelope
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"version":        strconv.Itoa(env.Version),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if company := event.CompanyID; company != nil {
		attrs["company_id"] = company.String()
	} else if company := env.CompanyID(); company != nil {
		attrs["company_id"] = company.String()
	}
	return attrs
}

func logFields(d *delivery) map[string]any {
	event := d.event
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	if d.resolved != nil {
		fields["topic"] = d.resolved.Descriptor.Topic
		if env := d.resolved.Envelope; env.EventID != "" {
			fields["event_id"] = env.EventID
			fields["occurred_at"] = env.OccurredAt.Format(time.RFC3339Nano)
		}
	}
	return fields
}
