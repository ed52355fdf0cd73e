package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/presence/config"
	"github.com/pulsehub/presence/src/types"
)

// mockBroadcastTarget records deliveries forwarded from the bridge.
type mockBroadcastTarget struct {
	received []types.Delivery
}

func (m *mockBroadcastTarget) BroadcastToLocal(d types.Delivery) {
	m.received = append(m.received, d)
}

func TestRedisEnvelopeSerialization(t *testing.T) {
	d := types.Delivery{
		Group:   "conv:alice:bob",
		UserIDs: []string{"bob"},
		Event: types.Event{
			Type:      types.EventNewMessage,
			Data:      map[string]any{"sender_id": "alice", "body": "hi"},
			Timestamp: time.Now().Truncate(time.Second),
		},
	}

	env := redisEnvelope{
		InstanceID: "instance-abc",
		Delivery:   d,
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded redisEnvelope
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, env.InstanceID, decoded.InstanceID)
	assert.Equal(t, d.Group, decoded.Delivery.Group)
	assert.Equal(t, d.UserIDs, decoded.Delivery.UserIDs)
	assert.Equal(t, types.EventNewMessage, decoded.Delivery.Event.Type)
	assert.Equal(t, "hi", decoded.Delivery.Event.Data["body"])
}

func TestRedisEnvelopeRoundTripPresence(t *testing.T) {
	d := types.Delivery{
		UserIDs: []string{"bob", "carol"},
		Event: types.Event{
			Type:      types.EventOnline,
			Data:      map[string]any{"user_id": "alice"},
			Timestamp: time.Now().Truncate(time.Millisecond),
		},
	}

	env := redisEnvelope{InstanceID: "node-1", Delivery: d}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out redisEnvelope
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "node-1", out.InstanceID)
	assert.Empty(t, out.Delivery.Group)
	assert.Equal(t, []string{"bob", "carol"}, out.Delivery.UserIDs)
	assert.Equal(t, "alice", out.Delivery.Event.Data["user_id"])
}

func TestRedisBridgeAvailableFalseBeforeStart(t *testing.T) {
	target := &mockBroadcastTarget{}
	cfg := config.DefaultRedisConfig()
	rb := NewRedisBridge(cfg, target, testLogger())
	assert.False(t, rb.Available())
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	target := &mockBroadcastTarget{}
	cfg := config.DefaultRedisConfig()
	b1 := NewRedisBridge(cfg, target, testLogger())
	b2 := NewRedisBridge(cfg, target, testLogger())
	assert.NotEqual(t, b1.instanceID, b2.instanceID)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
