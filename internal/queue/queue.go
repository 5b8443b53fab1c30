// Package queue moves triage events between the HTTP layer and the
// background worker over a Redis list. Producers LPUSH JSON-encoded
// messages; the worker BRPOPs them, so events survive a worker restart
// and multiple workers share the load without duplication.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event names carried on the queue.
const (
	EventTicketCreated = "ticket/create"
	EventUserSignedUp  = "user/signup"
)

// Message is the wire format of one queued event.
type Message struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TicketID   string    `json:"ticketId,omitempty"`
	Email      string    `json:"email,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Publisher enqueues triage events.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Queue is the Redis-backed implementation of both ends.
type Queue struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Publish pushes the message onto the list. The ID and timestamp are
// filled in when the caller left them empty.
func (q *Queue) Publish(ctx context.Context, msg Message) error {
	if q == nil || q.client == nil {
		return errors.New("queue not configured")
	}
	if msg.Name == "" {
		return errors.New("queue message requires a name")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Receive blocks for up to timeout waiting for the next message. A nil
// message with a nil error means the wait timed out; callers loop.
func (q *Queue) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	if q == nil || q.client == nil {
		return nil, errors.New("queue not configured")
	}

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return nil, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
