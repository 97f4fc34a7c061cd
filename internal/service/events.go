package service

import (
	"github.com/google/uuid"
)

const EventEInvoiceStatus = "einvoice.status"

// EInvoiceStatusEvent is pushed to connected clients after every persisted transition.
type EInvoiceStatusEvent struct {
	Type           string    `json:"type"`
	ID             uuid.UUID `json:"id"`
	DocumentNumber string    `json:"document_number"`
	Status         string    `json:"status"`
}

// EventPublisher delivers events to live subscribers. Implementations must not block.
type EventPublisher interface {
	Publish(event interface{})
}
