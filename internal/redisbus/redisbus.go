// Package redisbus mirrors the safety output into Redis for on-vehicle
// consumers that use the hash + pub/sub convention: the current state lives
// in the "safety" hash and every write is announced on the "safety" channel
// with the name of what changed.
package redisbus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
)

// Key is both the hash and the pub/sub channel.
const Key = "safety"

const writeTimeout = time.Second

// Publisher writes safety state to Redis.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a publisher for the Redis server at addr.
// No connection is made until the first write.
func NewPublisher(addr string) *Publisher {
	return &Publisher{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DB:           0,
			DialTimeout:  writeTimeout,
			WriteTimeout: writeTimeout,
			ReadTimeout:  writeTimeout,
		}),
	}
}

// Ping checks the server is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// PublishStatus stores the report in the hash and announces "status".
func (p *Publisher) PublishStatus(report logic.Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, Key, StatusFields(report))
	pipe.Publish(ctx, Key, "status")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish status: %w", err)
	}
	return nil
}

// Publish records the last transition and announces its event type.
func (p *Publisher) Publish(event logic.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, Key, EventFields(event))
	pipe.Publish(ctx, Key, string(event.Type))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish event: %w", err)
	}
	return nil
}

// PublishSystem announces a lifecycle event on the channel.
func (p *Publisher) PublishSystem(event mqtt.SystemEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, Key, "system:"+event.Event).Err(); err != nil {
		return fmt.Errorf("redis publish system: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// StatusFields flattens a report into hash fields. Ranges are in meters.
func StatusFields(report logic.Report) map[string]any {
	m := report.Ranges.Meters()
	return map[string]any{
		"emergency":    strconv.FormatBool(report.Status.Emergency),
		"warning":      strconv.FormatBool(report.Status.Warning),
		"state":        string(report.Phase),
		"range:left":   formatMeters(m[logic.Left]),
		"range:center": formatMeters(m[logic.Center]),
		"range:right":  formatMeters(m[logic.Right]),
		"timestamp":    strconv.FormatInt(report.Timestamp.UnixMilli(), 10),
	}
}

// EventFields flattens a transition into hash fields. The emergency and
// warning fields belong to StatusFields alone: a transition can be
// published after a newer one has already changed the flags.
func EventFields(event logic.Event) map[string]any {
	return map[string]any{
		"last-event":           string(event.Type),
		"last-event:reason":    string(event.Reason),
		"last-event:timestamp": strconv.FormatInt(event.Timestamp.UnixMilli(), 10),
	}
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
