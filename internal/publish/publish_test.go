package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/session"
)

func setupTestRedis(t *testing.T, maxLen int64) (*redis.Client, *Publisher) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	p := New(client, "vigil:alerts", maxLen)
	t.Cleanup(func() { p.Close() })
	return client, p
}

func TestPublisher_PublishResult(t *testing.T) {
	client, p := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, p.Ping(ctx))

	res := session.Result{
		SessionID:   "s1",
		Features:    features.FeatureSet{FaceDetected: true, EyesClosed: true},
		Level:       alert.Danger,
		AlarmActive: true,
		Timestamp:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	id, err := p.PublishResult(ctx, res)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "vigil:alerts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	v := msgs[0].Values
	assert.Equal(t, TypeResult, v["type"])
	assert.Equal(t, "s1", v["session_id"])
	assert.Equal(t, "DANGER", v["alert_level"])
	assert.Equal(t, "true", v["alarm_active"])

	var rec session.Record
	require.NoError(t, json.Unmarshal([]byte(v["data"].(string)), &rec))
	assert.Equal(t, alert.Danger, rec.AlertLevel)
	assert.True(t, rec.AlarmActive)
}

func TestPublisher_AlarmDevice(t *testing.T) {
	client, p := setupTestRedis(t, 0)
	ctx := context.Background()

	var dev alarm.Device = p
	require.NoError(t, dev.Activate(ctx, "s1"))
	require.NoError(t, dev.Deactivate(ctx, "s1"))

	msgs, err := client.XRange(ctx, p.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, TypeAlarm, msgs[0].Values["type"])
	assert.Equal(t, "activate", msgs[0].Values["edge"])
	assert.Equal(t, "deactivate", msgs[1].Values["edge"])
}

func TestPublisher_MaxLen(t *testing.T) {
	client, p := setupTestRedis(t, 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := p.PublishEdge(ctx, "s1", alarm.Activate)
		require.NoError(t, err)
	}

	n, err := client.XLen(ctx, p.Stream()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPublisher_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	p := New(NewClient(mr.Addr(), "", 0), "vigil:alerts", 0)
	defer p.Close()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := p.PublishEdge(ctx, "s1", alarm.Activate)
	assert.Error(t, err)
}
