// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// subscriberBuffer is the per-subscriber channel depth. A burst of
// filesystem events larger than this blocks the publisher briefly rather
// than dropping events.
const subscriberBuffer = 256

// Bus is the in-process pub/sub fabric connecting the watcher, the index
// coordinator, and UI-facing consumers. Every subscriber of a topic
// receives every message published to it after the subscription exists;
// there is no replay.
type Bus struct {
	pubsub     *gochannel.GoChannel
	serializer *Serializer
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates an in-process bus.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: subscriberBuffer,
	}, logger)

	return &Bus{
		pubsub:     pubsub,
		serializer: NewSerializer(),
		logger:     logger,
	}
}

// PublishFileEvent publishes a filesystem change observation.
func (b *Bus) PublishFileEvent(ctx context.Context, event *FileEvent) error {
	data, err := b.serializer.MarshalFile(event)
	if err != nil {
		return err
	}
	return b.publish(ctx, event.Topic(), event.EventID, data)
}

// PublishProgress publishes an indexing progress snapshot.
func (b *Bus) PublishProgress(ctx context.Context, event *ProgressEvent) error {
	data, err := b.serializer.MarshalProgress(event)
	if err != nil {
		return err
	}
	return b.publish(ctx, event.Topic(), event.EventID, data)
}

// PublishThumb publishes a thumbnail status transition.
func (b *Bus) PublishThumb(ctx context.Context, event *ThumbEvent) error {
	data, err := b.serializer.MarshalThumb(event)
	if err != nil {
		return err
	}
	return b.publish(ctx, event.Topic(), event.EventID, data)
}

func (b *Bus) publish(ctx context.Context, topic, eventID string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.mu.RUnlock()

	msg := message.NewMessage(eventID, data)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// SubscribeFiles returns a channel of decoded file events. The channel
// closes when ctx is canceled or the bus closes. Malformed payloads are
// logged and dropped.
func (b *Bus) SubscribeFiles(ctx context.Context) (<-chan *FileEvent, error) {
	msgs, err := b.subscribe(ctx, TopicFiles)
	if err != nil {
		return nil, err
	}

	out := make(chan *FileEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			event, err := b.serializer.UnmarshalFile(msg.Payload)
			msg.Ack()
			if err != nil {
				b.logger.Error("dropping malformed file event", err, watermill.LogFields{"message_uuid": msg.UUID})
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeProgress returns a channel of decoded progress events.
func (b *Bus) SubscribeProgress(ctx context.Context) (<-chan *ProgressEvent, error) {
	msgs, err := b.subscribe(ctx, TopicProgress)
	if err != nil {
		return nil, err
	}

	out := make(chan *ProgressEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			event, err := b.serializer.UnmarshalProgress(msg.Payload)
			msg.Ack()
			if err != nil {
				b.logger.Error("dropping malformed progress event", err, watermill.LogFields{"message_uuid": msg.UUID})
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeThumbs returns a channel of decoded thumbnail events.
func (b *Bus) SubscribeThumbs(ctx context.Context) (<-chan *ThumbEvent, error) {
	msgs, err := b.subscribe(ctx, TopicThumbs)
	if err != nil {
		return nil, err
	}

	out := make(chan *ThumbEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			event, err := b.serializer.UnmarshalThumb(msg.Payload)
			msg.Ack()
			if err != nil {
				b.logger.Error("dropping malformed thumb event", err, watermill.LogFields{"message_uuid": msg.UUID})
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Subscribe returns the raw message stream for a topic. Used by the NATS
// mirror, which re-publishes payloads without decoding them.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscribe(ctx, topic)
}

func (b *Bus) subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBusClosed
	}
	b.mu.RUnlock()

	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return msgs, nil
}

// Close shuts the bus down. Subscriber channels close once in-flight
// messages drain.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.pubsub.Close()
}

// ErrBusClosed is returned for operations on a closed bus.
var ErrBusClosed = fmt.Errorf("event bus is closed")
