package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

const bridgeTopic = "proofwatch.bridge"

// Bus is a Transport over a watermill publisher/subscriber pair. It backs
// both the in-process channel transport (the extension message bus analog)
// and the Redis stream transport for contexts in different processes.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

var _ ports.Transport = (*Bus)(nil)

// NewChannel creates an in-process transport. Contexts sharing the returned
// bus see each other's envelopes; there is no cross-process reach.
func NewChannel(logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return &Bus{publisher: ch, subscriber: ch}
}

// NewRedisStream creates a cross-process transport over Redis streams. Each
// subscriber uses its own consumer group so every context sees every message.
func NewRedisStream(client *redis.Client, contextID string, logger watermill.LoggerAdapter) (*Bus, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis publisher: %w", err)
	}
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: "bridge-" + contextID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis subscriber: %w", err)
	}
	return &Bus{publisher: publisher, subscriber: subscriber}, nil
}

// Send publishes an envelope, best effort.
func (b *Bus) Send(ctx context.Context, env core.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.publisher.Publish(bridgeTopic, message.NewMessage(env.ID, payload))
}

// Subscribe delivers every envelope on the bus, the caller's own included.
func (b *Bus) Subscribe(handler func(env core.Envelope)) (cancel func()) {
	subCtx, stop := context.WithCancel(context.Background())

	b.mu.Lock()
	b.cancels = append(b.cancels, stop)
	b.mu.Unlock()

	messages, err := b.subscriber.Subscribe(subCtx, bridgeTopic)
	if err != nil {
		stop()
		return func() {}
	}

	go func() {
		for msg := range messages {
			var env core.Envelope
			if err := json.Unmarshal(msg.Payload, &env); err == nil {
				handler(env)
			}
			msg.Ack()
		}
	}()

	return stop
}

// Close stops all subscriptions and releases the underlying pub/sub.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, stop := range b.cancels {
		stop()
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	// GoChannel is both halves of the pair; avoid double close.
	if _, ok := b.subscriber.(*gochannel.GoChannel); ok {
		return nil
	}
	return b.subscriber.Close()
}
