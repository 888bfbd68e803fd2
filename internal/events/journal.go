package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slidecoffee/brew-service/pkg/logger"
)

var errSinkClosed = errors.New("event sink closed")

// Journal keeps a bounded copy of every run's event stream in a Redis stream
// under key "<prefix><runID>", so a run can be inspected after the SSE
// connection is gone.
type Journal struct {
	client *redis.Client
	prefix string
	maxLen int64
	ttl    time.Duration
}

// NewJournal creates a Redis-backed journal. Prefix may be empty.
func NewJournal(client *redis.Client, prefix string, ttl time.Duration) *Journal {
	if prefix == "" {
		prefix = "brew:run:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Journal{client: client, prefix: prefix, maxLen: 500, ttl: ttl}
}

func (j *Journal) key(runID string) string {
	return j.prefix + runID
}

// Append records e at the tail of the run's stream.
func (j *Journal) Append(ctx context.Context, runID string, e Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	key := j.key(runID)
	err = j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: j.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    string(e.Type()),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append event to %s: %w", key, err)
	}
	return j.client.Expire(ctx, key, j.ttl).Err()
}

// Read returns the journaled events of a run in order. An unknown run yields
// an empty slice.
func (j *Journal) Read(ctx context.Context, runID string) ([]Event, error) {
	msgs, err := j.client.XRange(ctx, j.key(runID), "-", "+").Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		raw, _ := m.Values["payload"].(string)
		e, err := Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", m.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Tee forwards every event to sink and journals the ones sink accepted, so
// the replay log never holds a frame the client did not receive. Journal
// failures are logged and never reach the caller.
func Tee(sink Sink, j *Journal, runID string) Sink {
	if j == nil {
		return sink
	}
	return SinkFunc(func(e Event) error {
		if err := sink.Send(e); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := j.Append(ctx, runID, e); err != nil {
			logger.Warnf("journal append failed for run %s: %v", runID, err)
		}
		return nil
	})
}
