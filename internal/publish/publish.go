// Package publish fans session results and alarm edges out to a Redis stream.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/session"
)

// Entry types written to the stream.
const (
	TypeResult = "result"
	TypeAlarm  = "alarm"
)

// Publisher appends entries to a Redis stream with XADD.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewClient creates a Redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// New returns a Publisher writing to stream. A positive maxLen trims the
// stream to that many entries.
func New(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key.
func (p *Publisher) Stream() string {
	return p.stream
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) add(ctx context.Context, values map[string]interface{}) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// PublishResult appends one classified frame.
func (p *Publisher) PublishResult(ctx context.Context, res session.Result) (string, error) {
	data, err := json.Marshal(res.Record())
	if err != nil {
		return "", err
	}

	return p.add(ctx, map[string]interface{}{
		"type":         TypeResult,
		"session_id":   res.SessionID,
		"alert_level":  res.Level.String(),
		"alarm_active": strconv.FormatBool(res.AlarmActive),
		"data":         string(data),
		"timestamp":    strconv.FormatInt(res.Timestamp.UnixMilli(), 10),
	})
}

// PublishEdge appends one alarm transition.
func (p *Publisher) PublishEdge(ctx context.Context, sessionID string, edge alarm.Edge) (string, error) {
	return p.add(ctx, map[string]interface{}{
		"type":       TypeAlarm,
		"session_id": sessionID,
		"edge":       edge.String(),
		"timestamp":  strconv.FormatInt(time.Now().UnixMilli(), 10),
	})
}

// Activate implements alarm.Device.
func (p *Publisher) Activate(ctx context.Context, sessionID string) error {
	_, err := p.PublishEdge(ctx, sessionID, alarm.Activate)
	return err
}

// Deactivate implements alarm.Device.
func (p *Publisher) Deactivate(ctx context.Context, sessionID string) error {
	_, err := p.PublishEdge(ctx, sessionID, alarm.Deactivate)
	return err
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
