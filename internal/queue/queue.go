// Package queue defines the message source contract consumed by the
// pipeline driver.
package queue

import "context"

// Message is one raw queue message.
type Message struct {
	ID            string
	Body          []byte
	ReceiptHandle string // kept for diagnostics; messages are never deleted
}

// Source returns whatever messages are immediately available, within a
// bounded short wait. An empty slice with a nil error means the queue is
// empty. Sources never acknowledge or delete what they return.
type Source interface {
	Receive(ctx context.Context) ([]Message, error)
}
