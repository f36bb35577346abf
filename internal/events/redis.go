package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/logging"
)

const (
	defaultChannel     = "portward:jobs"
	defaultSnapshotTTL = time.Hour
	defaultBuffer      = 1024
	publishTimeout     = 2 * time.Second
)

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	SnapshotTTL time.Duration
	// Buffer is the number of events held while Redis is slow.
	Buffer int
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Channel == "" {
		c.Channel = defaultChannel
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = defaultSnapshotTTL
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	return c
}

// RedisPublisher publishes every job event on a pub/sub channel and keeps
// the latest snapshot of each job in a hash at portward:job:<id>.
// Events are queued and written by one goroutine; when the queue is full
// the event is dropped so the scan never waits on Redis.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan jobs.Event
	done   chan struct{}

	dropped atomic.Int64
}

// NewRedisPublisher connects to Redis and starts publishing.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapScanError(errors.CodeServiceUnavailable,
			fmt.Sprintf("failed to connect to redis at %s", cfg.Addr), err)
	}

	p := newRedisPublisher(client, cfg)
	go p.run()
	return p, nil
}

func newRedisPublisher(client *redis.Client, cfg RedisConfig) *RedisPublisher {
	cfg = cfg.withDefaults()
	return &RedisPublisher{
		client:  client,
		channel: cfg.Channel,
		ttl:     cfg.SnapshotTTL,
		logger:  logging.Component("events").With("channel", cfg.Channel),
		queue:   make(chan jobs.Event, cfg.Buffer),
		done:    make(chan struct{}),
	}
}

// Notify implements jobs.Notifier.
func (p *RedisPublisher) Notify(event jobs.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("Event queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (p *RedisPublisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn("Failed to publish event",
				"job_id", event.JobID,
				"type", event.Type,
				"error", err)
		}
		cancel()
	}
}

func snapshotKey(jobID string) string {
	return "portward:job:" + jobID
}

func (p *RedisPublisher) publish(ctx context.Context, event jobs.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(event.Job)
	if err != nil {
		return err
	}

	key := snapshotKey(event.JobID)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.HSet(ctx, key, map[string]interface{}{
			"status":     string(event.Job.Status),
			"event":      string(event.Type),
			"snapshot":   string(snapshot),
			"updated_at": event.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	return err
}

// LatestSnapshot returns the last snapshot published for a job.
func (p *RedisPublisher) LatestSnapshot(ctx context.Context, jobID string) (*jobs.Snapshot, error) {
	raw, err := p.client.HGet(ctx, snapshotKey(jobID), "snapshot").Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.ErrJobNotFound(jobID)
	}
	if err != nil {
		return nil, err
	}

	var snap jobs.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close stops accepting events, flushes the queue and closes the client.
// Events still queued when ctx ends are lost.
func (p *RedisPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	var err error
	select {
	case <-p.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if cerr := p.client.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ jobs.Notifier = (*RedisPublisher)(nil)
