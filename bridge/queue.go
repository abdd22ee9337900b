package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// OutcomeQueue buffers relay outcomes for observers such as the admin event
// stream. It never drives the relay itself.
type OutcomeQueue interface {
	Push(ctx context.Context, outcome Outcome) error
	// Pull returns the oldest outcome, or nil when the queue is empty.
	Pull(ctx context.Context) (*Outcome, error)
	IsEmpty(ctx context.Context) bool
}

type RedisOutcomeQueue struct {
	client   *RedisCache
	queueKey string
	maxLen   int64
}

// NewRedisOutcomeQueue keeps at most maxLen outcomes (0 for unbounded).
func NewRedisOutcomeQueue(client *RedisCache, queueKey string, maxLen int64) *RedisOutcomeQueue {
	return &RedisOutcomeQueue{client: client, queueKey: queueKey, maxLen: maxLen}
}

func (r *RedisOutcomeQueue) Push(ctx context.Context, outcome Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	pipe := r.client.InternalCache.TxPipeline()
	pipe.RPush(ctx, r.queueKey, data)
	if r.maxLen > 0 {
		pipe.LTrim(ctx, r.queueKey, -r.maxLen, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisOutcomeQueue) Pull(ctx context.Context) (*Outcome, error) {
	result, err := r.client.InternalCache.LPop(ctx, r.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if result == "" {
		return nil, nil
	}
	var outcome Outcome
	if err := json.Unmarshal([]byte(result), &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (r *RedisOutcomeQueue) IsEmpty(ctx context.Context) bool {
	length, err := r.client.InternalCache.LLen(ctx, r.queueKey).Result()
	return err == nil && length == 0
}

// InMemoryOutcomeQueue is a thread-safe OutcomeQueue for a single process.
type InMemoryOutcomeQueue struct {
	queue  []Outcome
	maxLen int
	mu     sync.RWMutex
}

func NewInMemoryOutcomeQueue(maxLen int) *InMemoryOutcomeQueue {
	return &InMemoryOutcomeQueue{queue: make([]Outcome, 0), maxLen: maxLen}
}

func (m *InMemoryOutcomeQueue) Push(_ context.Context, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, outcome)
	if m.maxLen > 0 && len(m.queue) > m.maxLen {
		m.queue = m.queue[len(m.queue)-m.maxLen:]
	}
	return nil
}

func (m *InMemoryOutcomeQueue) Pull(_ context.Context) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, nil
	}

	outcome := m.queue[0]
	m.queue = m.queue[1:]
	return &outcome, nil
}

func (m *InMemoryOutcomeQueue) IsEmpty(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue) == 0
}
