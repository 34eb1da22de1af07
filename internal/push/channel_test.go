package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"storefront-sync/internal/interfaces/mock"
	"storefront-sync/internal/models"
)

var topic = models.Topic{Schema: "public", Table: "notifications", Event: models.InsertEventType}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "realtime:public:notifications", ChannelName(topic))
}

func TestPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	channel := NewChannel(client, zaptest.NewLogger(t))

	event := models.ChangeEvent{
		Schema: "public",
		Table:  "notifications",
		Type:   models.InsertEventType,
		Record: json.RawMessage(`{"id":"n1"}`),
	}

	client.EXPECT().Publish(gomock.Any(), "realtime:public:notifications", gomock.Any()).DoAndReturn(
		func(ctx context.Context, ch string, message interface{}) *redis.IntCmd {
			payload, ok := message.([]byte)
			require.True(t, ok)
			var decoded models.ChangeEvent
			assert.NoError(t, json.Unmarshal(payload, &decoded))
			assert.Equal(t, event.Type, decoded.Type)
			assert.JSONEq(t, `{"id":"n1"}`, string(decoded.Record))
			return redis.NewIntResult(1, nil)
		})

	assert.NoError(t, channel.Publish(context.Background(), event))
}

func TestPublish_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	channel := NewChannel(client, zaptest.NewLogger(t))

	client.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(redis.NewIntResult(0, errors.New("connection reset")))

	err := channel.Publish(context.Background(), models.ChangeEvent{Schema: "public", Table: "notifications"})
	assert.Error(t, err)
}

type recorder struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recorder) handle(e models.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func message(t *testing.T, event models.ChangeEvent) *redis.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return &redis.Message{Channel: ChannelName(topic), Payload: string(payload)}
}

func TestConsume_FiltersAndStopsOnClose(t *testing.T) {
	channel := NewChannel(nil, zaptest.NewLogger(t))
	messages := make(chan *redis.Message)
	rec := &recorder{}

	closed := false
	sub := newSubscription(func() error {
		closed = true
		return nil
	})
	go func() {
		defer close(sub.done)
		channel.consume(sub.ctx, messages, topic, rec.handle)
	}()

	messages <- message(t, models.ChangeEvent{Schema: "public", Table: "notifications", Type: "INSERT", Record: json.RawMessage(`{}`)})
	messages <- message(t, models.ChangeEvent{Schema: "public", Table: "notifications", Type: "UPDATE"})
	messages <- message(t, models.ChangeEvent{Schema: "public", Table: "orders", Type: "INSERT"})
	messages <- &redis.Message{Payload: "not json"}
	messages <- message(t, models.ChangeEvent{Schema: "public", Table: "notifications", Type: "INSERT", Record: json.RawMessage(`{}`)})

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.True(t, closed)

	select {
	case messages <- message(t, models.ChangeEvent{Schema: "public", Table: "notifications", Type: "INSERT"}):
		t.Fatal("consumer still running after close")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 2, rec.count())
}

func TestConsume_ReturnsWhenMessagesClosed(t *testing.T) {
	channel := NewChannel(nil, zaptest.NewLogger(t))
	messages := make(chan *redis.Message)
	done := make(chan struct{})

	go func() {
		defer close(done)
		channel.consume(context.Background(), messages, topic, func(models.ChangeEvent) {})
	}()

	close(messages)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return")
	}
}

func TestSubscriptionClose_ReturnsCloserError(t *testing.T) {
	boom := errors.New("close failed")
	sub := newSubscription(func() error { return boom })
	close(sub.done)

	assert.ErrorIs(t, sub.Close(), boom)
	assert.ErrorIs(t, sub.Close(), boom)
}
