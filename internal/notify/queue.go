package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hrdesign/internal/domain"
	"hrdesign/internal/repo"
)

// Envelope is a queued mail: who gets it and what it says.
type Envelope struct {
	ID       string    `json:"id"`
	Event    string    `json:"event"`
	To       Recipient `json:"to"`
	Message  Message   `json:"message"`
	Attempts int       `json:"attempts"`
}

// Queue stores envelopes between Dispatcher and Worker. Delivery is at-least-once.
type Queue interface {
	Enqueue(ctx context.Context, env Envelope) error
	// Claim hands out up to max envelopes that no other worker holds.
	Claim(ctx context.Context, max int) ([]Envelope, error)
	Ack(ctx context.Context, env Envelope) error
	// Retry records a failed attempt. dead reports that the envelope will not be tried again.
	Retry(ctx context.Context, env Envelope, cause error, maxAttempts int) (dead bool, err error)
}

// SQLQueue keeps envelopes in the outbox table.
type SQLQueue struct {
	Repo repo.Repo
	Now  func() time.Time
}

type outboxPayload struct {
	To      Recipient `json:"to"`
	Message Message   `json:"message"`
}

func (q SQLQueue) now() string {
	if q.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return q.Now().UTC().Format(time.RFC3339)
}

func (q SQLQueue) Enqueue(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(outboxPayload{To: env.To, Message: env.Message})
	if err != nil {
		return err
	}
	return q.Repo.InsertOutbox(ctx, nil, domain.OutboxMessage{
		ID:          env.ID,
		Event:       env.Event,
		Recipient:   env.To.Email,
		PayloadJSON: string(data),
		Status:      domain.OutboxPending,
		CreatedAt:   q.now(),
	})
}

func (q SQLQueue) Claim(ctx context.Context, max int) ([]Envelope, error) {
	rows, err := q.Repo.ListOutbox(ctx, domain.OutboxPending, max)
	if err != nil {
		return nil, err
	}
	var out []Envelope
	for _, row := range rows {
		if err := q.Repo.ClaimOutbox(ctx, row.ID); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				continue
			}
			return out, err
		}
		var p outboxPayload
		if err := json.Unmarshal([]byte(row.PayloadJSON), &p); err != nil {
			// Undecodable rows can never succeed.
			_, _ = q.Repo.MarkOutboxAttemptFailed(ctx, row.ID, fmt.Sprintf("invalid payload: %v", err), 1)
			continue
		}
		out = append(out, Envelope{ID: row.ID, Event: row.Event, To: p.To, Message: p.Message, Attempts: row.Attempts})
	}
	return out, nil
}

func (q SQLQueue) Ack(ctx context.Context, env Envelope) error {
	return q.Repo.MarkOutboxSent(ctx, env.ID, q.now())
}

func (q SQLQueue) Retry(ctx context.Context, env Envelope, cause error, maxAttempts int) (bool, error) {
	status, err := q.Repo.MarkOutboxAttemptFailed(ctx, env.ID, cause.Error(), maxAttempts)
	if err != nil {
		return false, err
	}
	return status == domain.OutboxFailed, nil
}

// Recover releases rows a crashed worker left in processing.
func (q SQLQueue) Recover(ctx context.Context) (int64, error) {
	return q.Repo.ReleaseProcessing(ctx)
}

// RedisQueue keeps envelopes in a Redis list: RPUSH to enqueue, BLPOP to claim.
type RedisQueue struct {
	Client *redis.Client
	Key    string
	// Block bounds how long Claim waits for the first envelope.
	Block time.Duration
}

func NewRedisQueue(addr, key string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	if key == "" {
		key = "hrdesign:mail"
	}
	return &RedisQueue{Client: client, Key: key, Block: time.Second}, nil
}

func (q *RedisQueue) deadKey() string { return q.Key + ":failed" }

func (q *RedisQueue) Enqueue(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return q.Client.RPush(ctx, q.Key, data).Err()
}

func (q *RedisQueue) Claim(ctx context.Context, max int) ([]Envelope, error) {
	if max <= 0 {
		max = 1
	}
	block := q.Block
	if block <= 0 {
		block = time.Second
	}
	first, err := q.Client.BLPop(ctx, block, q.Key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw := []string{first[1]}
	for len(raw) < max {
		v, err := q.Client.LPop(ctx, q.Key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, err
		}
		raw = append(raw, v)
	}
	out := make([]Envelope, 0, len(raw))
	for _, r := range raw {
		var env Envelope
		if err := json.Unmarshal([]byte(r), &env); err != nil {
			_ = q.Client.RPush(ctx, q.deadKey(), r).Err()
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

// Ack is a no-op; BLPOP already removed the envelope.
func (q *RedisQueue) Ack(context.Context, Envelope) error { return nil }

func (q *RedisQueue) Retry(ctx context.Context, env Envelope, _ error, maxAttempts int) (bool, error) {
	env.Attempts++
	data, err := json.Marshal(env)
	if err != nil {
		return false, err
	}
	if env.Attempts >= maxAttempts {
		return true, q.Client.RPush(ctx, q.deadKey(), data).Err()
	}
	return false, q.Client.RPush(ctx, q.Key, data).Err()
}

func (q *RedisQueue) Close() error { return q.Client.Close() }
