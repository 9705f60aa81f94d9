package queue

import (
	"context"
)

// Message is one unit of work on the dispatch queue. Attempts counts
// deliveries, including the current one.
type Message struct {
	ID       string
	Body     []byte
	Attempts int
}

// Queue is a durable point-to-point queue with explicit acknowledgement.
// Received messages stay invisible until acked or nacked; a nacked message
// is redelivered until the receive limit is spent.
type Queue interface {
	Enqueue(ctx context.Context, body []byte) error
	// Receive blocks for the next message. The message is hidden from other
	// receivers until Ack or Nack.
	Receive(ctx context.Context) (Message, error)
	// Ack removes the message from the queue.
	Ack(id string)
	// Nack returns the message for redelivery, or dead-letters it when its
	// receives are exhausted.
	Nack(id string)
}
