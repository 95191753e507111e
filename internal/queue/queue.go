// Package queue is a small Redis-backed delayed task queue. The API layer
// publishes recalculation jobs here and the worker binary consumes them,
// retrying with backoff and parking exhausted jobs in a Postgres dead
// letter table.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-commissions/internal/obs"
	"github.com/noah-isme/backend-commissions/internal/resilience"
)

// KindRecalc is the job kind carrying a commission recalculation request.
const KindRecalc = "commission-recalc"

// Job is one unit of asynchronous work.
type Job struct {
	Kind        string
	Payload     []byte
	Key         string
	MaxAttempts int
	Delay       time.Duration
}

type envelope struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	ReadyAt     int64  `json:"ready_at"`
}

// Producer publishes jobs. A job with a Key is enqueued at most once within
// the dedup window, so many paid transitions for the same BDM and month
// collapse into one recalculation.
type Producer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Publish enqueues the job.
func (p Producer) Publish(ctx context.Context, job Job) error {
	if p.R == nil {
		return errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(job.Kind)
	if kind == "" {
		return errors.New("queue: job kind is required")
	}
	env := envelope{
		Kind:        kind,
		Key:         job.Key,
		Payload:     job.Payload,
		MaxAttempts: job.MaxAttempts,
	}
	if env.MaxAttempts <= 0 {
		env.MaxAttempts = 10
	}
	env.ReadyAt = time.Now().Add(job.Delay).UnixNano()

	if env.Key != "" {
		ttl := p.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := p.R.SetNX(ctx, dedupKey(p.Prefix, kind, env.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.R.ZAdd(ctx, queueKey(p.Prefix, kind), redis.Z{Score: float64(env.ReadyAt), Member: raw}).Err()
}

// Consumer processes jobs of one kind until its context is cancelled.
// Claimed jobs sit in a processing set scored by their visibility deadline;
// a crashed worker's jobs reappear on the queue once the deadline passes.
type Consumer struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Concurrency int
	Visibility  time.Duration
	RetryBase   time.Duration
	RetryJitter float64
	Handler     func(context.Context, Job) error
	DLQ         Store
	Log         zerolog.Logger
}

// Run blocks until ctx is cancelled.
func (c Consumer) Run(ctx context.Context) error {
	if c.R == nil {
		return errors.New("queue: consumer redis client not configured")
	}
	if c.Handler == nil {
		return errors.New("queue: consumer handler not configured")
	}
	kind := sanitizeKind(c.Kind)
	if kind == "" {
		return errors.New("queue: consumer kind is required")
	}
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	visibility := c.Visibility
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	retryBase := c.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}

	qKey := queueKey(c.Prefix, kind)
	pKey := processingKey(c.Prefix, kind)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	reclaim := time.NewTicker(time.Second)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-reclaim.C:
			if err := c.reclaimExpired(ctx, pKey, qKey); err != nil {
				return err
			}
		default:
		}

		res, err := c.R.ZPopMin(ctx, qKey, 1).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if err == redis.Nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}
		if len(res) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		member, ok := res[0].Member.(string)
		if !ok {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			c.Log.Error().Err(err).Str("kind", kind).Msg("queue: dropping undecodable job")
			continue
		}
		now := time.Now().UnixNano()
		if env.ReadyAt > now {
			// Not due yet. Put it back and nap until roughly its time.
			c.R.ZAdd(ctx, qKey, redis.Z{Score: float64(env.ReadyAt), Member: member})
			sleep := time.Duration(env.ReadyAt - now)
			if sleep > time.Second {
				sleep = time.Second
			}
			time.Sleep(sleep)
			continue
		}

		env.Attempt++
		rawBytes, err := json.Marshal(env)
		if err != nil {
			continue
		}
		raw := string(rawBytes)
		deadline := time.Now().Add(visibility).UnixNano()
		if err := c.R.ZAdd(ctx, pKey, redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
			return err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(raw string, env envelope) {
			defer func() { <-sem }()
			defer wg.Done()
			jobCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			err := c.Handler(jobCtx, Job{Kind: env.Kind, Payload: env.Payload, Key: env.Key})
			if err != nil {
				c.fail(jobCtx, qKey, pKey, raw, env, retryBase, err)
				return
			}
			c.ack(jobCtx, pKey, raw, env)
		}(raw, env)
	}
}

func (c Consumer) fail(ctx context.Context, qKey, pKey, raw string, env envelope, base time.Duration, cause error) {
	_ = c.R.ZRem(ctx, pKey, raw)
	if env.MaxAttempts > 0 && env.Attempt >= env.MaxAttempts {
		c.Log.Error().Err(cause).
			Str("kind", env.Kind).
			Str("key", env.Key).
			Int("attempts", env.Attempt).
			Msg("queue: job exhausted, moving to dead letter table")
		if c.DLQ != nil {
			_, dlqErr := c.DLQ.InsertDLQ(ctx, DLQEntry{
				Kind:     env.Kind,
				Key:      env.Key,
				Payload:  env.Payload,
				Attempts: env.Attempt,
				LastErr:  cause.Error(),
			})
			if dlqErr != nil {
				c.Log.Error().Err(dlqErr).Str("kind", env.Kind).Msg("queue: failed to park job in dead letter table")
			} else if obs.QueueDLQTotal != nil {
				obs.QueueDLQTotal.Inc()
			}
		}
		if env.Key != "" {
			_ = c.R.Del(ctx, dedupKey(c.Prefix, env.Kind, env.Key)).Err()
		}
		return
	}
	delay := resilience.Backoff(base, env.Attempt, c.RetryJitter)
	env.ReadyAt = time.Now().Add(delay).UnixNano()
	rawBytes, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = c.R.ZAdd(ctx, qKey, redis.Z{Score: float64(env.ReadyAt), Member: string(rawBytes)}).Err()
}

func (c Consumer) ack(ctx context.Context, pKey, raw string, env envelope) {
	_ = c.R.ZRem(ctx, pKey, raw)
	if env.Key != "" {
		_ = c.R.Del(ctx, dedupKey(c.Prefix, env.Kind, env.Key)).Err()
	}
}

func (c Consumer) reclaimExpired(ctx context.Context, pKey, qKey string) error {
	now := float64(time.Now().UnixNano())
	due, err := c.R.ZRangeByScore(ctx, pKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, raw := range due {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		_ = c.R.ZRem(ctx, pKey, raw).Err()
		env.ReadyAt = time.Now().UnixNano()
		encoded, err := json.Marshal(env)
		if err != nil {
			continue
		}
		_ = c.R.ZAdd(ctx, qKey, redis.Z{Score: float64(env.ReadyAt), Member: encoded}).Err()
	}
	return nil
}

func queueKey(prefix, kind string) string {
	if prefix == "" {
		return "queue:" + kind
	}
	return prefix + ":queue:" + kind
}

func processingKey(prefix, kind string) string {
	return queueKey(prefix, kind) + ":processing"
}

func dedupKey(prefix, kind, key string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:dedup:%s:%s", kind, key)
	}
	return fmt.Sprintf("%s:dedup:%s:%s", prefix, kind, key)
}

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == ':':
		default:
			return ""
		}
	}
	return kind
}
