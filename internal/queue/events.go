package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"canteen-menu-service/internal/store"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "canteen.events"

	SelectionChangedRK = "selection.changed"
	CatalogDriftRK     = "catalog.drift"

	SelectionAuditQueue = "canteen.selection_audit"
	SelectionAuditDLQ   = "canteen.selection_audit.dlq"
	DeadLetterExchange  = "canteen.dead"
)

type SelectionChangedEvent struct {
	Type       string    `json:"type"`
	EventID    string    `json:"eventId"`
	BookingID  int64     `json:"bookingId"`
	ActorID    int64     `json:"actorId"`
	Action     string    `json:"action"`
	Added      []int64   `json:"added"`
	Removed    []int64   `json:"removed"`
	Version    int64     `json:"version"`
	MenuPrice  float64   `json:"menuPrice"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e SelectionChangedEvent) AuditEntry() store.AuditEntry {
	return store.AuditEntry{
		EventID:   e.EventID,
		BookingID: e.BookingID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Added:     e.Added,
		Removed:   e.Removed,
		Version:   e.Version,
		CreatedAt: e.OccurredAt,
	}
}

type CatalogDriftEvent struct {
	Type       string    `json:"type"`
	Kind       string    `json:"kind"`
	ID         int64     `json:"id"`
	RefID      int64     `json:"refId"`
	DetectedAt time.Time `json:"detectedAt"`
}

// EnsureTopology declares the events exchange and the audit queue with its
// dead-letter queue. Selection events fan out to the audit queue; drift
// events stay on the exchange for external subscribers.
func EnsureTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if err := qc.EnsureExchangeKind(DeadLetterExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(SelectionAuditDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(SelectionAuditDLQ, DeadLetterExchange, SelectionAuditQueue); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(SelectionAuditQueue, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": SelectionAuditQueue,
	})
	if err != nil {
		return err
	}
	// '#' so that future multi-segment keys such as selection.changed.admin still match.
	return qc.BindQueue(SelectionAuditQueue, EventsExchange, "selection.#")
}

// AuditHandler stores selection events as audit rows. Replays are harmless
// because AppendAudit ignores known event ids.
func AuditHandler(audit store.AuditStore) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var event SelectionChangedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			// Malformed payloads will never succeed; drop them.
			return nil
		}
		if event.EventID == "" || event.BookingID <= 0 {
			return nil
		}
		if err := audit.AppendAudit(ctx, event.AuditEntry()); err != nil {
			return fmt.Errorf("append audit for booking %d: %w", event.BookingID, err)
		}
		return nil
	}
}
