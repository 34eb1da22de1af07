package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
)

// Ensure Channel implements interfaces.PushChannel
var _ interfaces.PushChannel = (*Channel)(nil)

// Channel delivers row insert events over Redis pub/sub. Each topic maps
// to the channel realtime:<schema>:<table>.
type Channel struct {
	client interfaces.RedisClient
	logger *zap.Logger
}

// NewChannel creates a push channel over client
func NewChannel(client interfaces.RedisClient, logger *zap.Logger) *Channel {
	return &Channel{client: client, logger: logger}
}

// ChannelName returns the pub/sub channel of a topic
func ChannelName(topic models.Topic) string {
	return fmt.Sprintf("realtime:%s:%s", topic.Schema, topic.Table)
}

// Publish announces a change event to subscribers of its table
func (c *Channel) Publish(ctx context.Context, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	channel := ChannelName(models.Topic{Schema: event.Schema, Table: event.Table})
	if err := c.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers events matching topic to handler until the returned
// subscription is closed
func (c *Channel) Subscribe(ctx context.Context, topic models.Topic, handler func(models.ChangeEvent)) (interfaces.Subscription, error) {
	channel := ChannelName(topic)
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := newSubscription(pubsub.Close)
	go func() {
		defer close(sub.done)
		c.consume(sub.ctx, pubsub.Channel(), topic, handler)
	}()

	c.logger.Debug("Subscribed to push channel", zap.String("channel", channel))
	return sub, nil
}

// consume dispatches messages until ctx is done or messages is closed
func (c *Channel) consume(ctx context.Context, messages <-chan *redis.Message, topic models.Topic, handler func(models.ChangeEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.deliver(msg.Payload, topic, handler)
		}
	}
}

func (c *Channel) deliver(payload string, topic models.Topic, handler func(models.ChangeEvent)) {
	var event models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.logger.Warn("Dropping undecodable push message", zap.Error(err))
		metrics.RecordNotificationRejection("push", "undecodable")
		return
	}

	if event.Schema != topic.Schema || event.Table != topic.Table {
		metrics.RecordNotificationRejection("push", "topic")
		return
	}
	if topic.Event != "" && event.Type != topic.Event {
		metrics.RecordNotificationRejection("push", "event_type")
		return
	}

	handler(event)
}

type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closer func() error

	once sync.Once
	err  error
}

func newSubscription(closer func() error) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		closer: closer,
	}
}

// Close stops delivery and waits for the consumer to exit
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.closer()
		<-s.done
	})
	return s.err
}
