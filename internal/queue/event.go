// Package queue defines the purchase event payload and its RabbitMQ
// publisher and consumer.
package queue

import "time"

// PurchaseCompletedEvent is published when a payment reaches completed.  It
// carries enough for downstream consumers to log or notify without querying
// the primary database.
type PurchaseCompletedEvent struct {
	PaymentID     uint64     `json:"payment_id"`
	TransactionID string     `json:"transaction_id"`
	UserID        *uint64    `json:"user_id,omitempty"`
	UserEmail     string     `json:"user_email,omitempty"`
	BookID        uint64     `json:"book_id"`
	BookTitle     string     `json:"book_title"`
	PaymentType   string     `json:"payment_type"`
	PurchaseType  string     `json:"purchase_type"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CompletedAt   time.Time  `json:"completed_at"`
}
