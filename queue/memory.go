package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadLetter receives messages whose receive budget is spent.
type DeadLetter func(msg Message)

// MemoryQueue is the in-process queue implementation. Enqueued messages live
// on a buffered channel; in-flight messages are tracked until acked.
type MemoryQueue struct {
	ch          chan Message
	mu          sync.Mutex
	inflight    map[string]Message
	maxReceives int
	deadLetter  DeadLetter
	log         *zap.SugaredLogger
}

func NewMemoryQueue(capacity, maxReceives int, deadLetter DeadLetter, log *zap.SugaredLogger) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	if maxReceives <= 0 {
		maxReceives = 2
	}
	return &MemoryQueue{
		ch:          make(chan Message, capacity),
		inflight:    make(map[string]Message),
		maxReceives: maxReceives,
		deadLetter:  deadLetter,
		log:         log,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, body []byte) error {
	msg := Message{ID: uuid.New().String(), Body: body}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		msg.Attempts++
		q.mu.Lock()
		q.inflight[msg.ID] = msg
		q.mu.Unlock()
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(id string) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
}

func (q *MemoryQueue) Nack(id string) {
	q.mu.Lock()
	msg, ok := q.inflight[id]
	delete(q.inflight, id)
	q.mu.Unlock()
	if !ok {
		return
	}

	if msg.Attempts >= q.maxReceives {
		q.log.Errorw("Message exhausted receives, dead-lettering",
			"message_id", msg.ID,
			"attempts", msg.Attempts,
		)
		if q.deadLetter != nil {
			q.deadLetter(msg)
		}
		return
	}

	select {
	case q.ch <- msg:
	default:
		q.log.Errorw("Queue full on redelivery, dead-lettering", "message_id", msg.ID)
		if q.deadLetter != nil {
			q.deadLetter(msg)
		}
	}
}
