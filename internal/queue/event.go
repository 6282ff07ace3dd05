// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the durable queue account events are routed to.
const DefaultQueueName = "account.events"

// EventType names what happened to an account.
type EventType string

const (
	// EventRegistered is published when a farmer or customer row is created.
	EventRegistered EventType = "account.registered"
	// EventLinked is published when a multi account is created for an email.
	EventLinked EventType = "account.linked"
)

// AccountEvent is published after an identity change commits.  It carries
// enough for downstream consumers (audit log, welcome mail, analytics) to
// act without querying the identity store.  It never carries secrets.
type AccountEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAccountEvent stamps a fresh event id and the current UTC time.
func NewAccountEvent(typ EventType, accountID, email, role string) AccountEvent {
	return AccountEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		AccountID:  accountID,
		Email:      email,
		Role:       role,
		OccurredAt: time.Now().UTC(),
	}
}
