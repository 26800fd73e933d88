// Package queue defines the hierarchy events exchanged over RabbitMQ and
// the consumer that applies them to the local subordinate cache.
package queue

import "time"

const (
	// Exchange is the fanout exchange hierarchy events are published to.
	// Every server instance binds its own exclusive queue so each one sees
	// every event.
	Exchange = "hierarchy.events"
	// ManagerChangedType is the AMQP message type of ManagerChangedEvent.
	ManagerChangedType = "hierarchy.manager_changed"
)

// ManagerChangedEvent is published after a user's manager edge changed.
// It carries both ends of the move so a consumer can invalidate every
// affected subordinate set without reading the database.
type ManagerChangedEvent struct {
	UserID       uint64    `json:"user_id"`
	TenantID     uint64    `json:"tenant_id"`
	OldManagerID *uint64   `json:"old_manager_id,omitempty"`
	NewManagerID *uint64   `json:"new_manager_id,omitempty"`
	ChangedBy    uint64    `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
}
