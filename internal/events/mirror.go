// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

//go:build nats

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// MirrorConfig holds NATS mirror configuration.
type MirrorConfig struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// Circuit breaker: after BreakerThreshold consecutive publish failures
	// the mirror stops hitting NATS for BreakerCooldown.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// DefaultMirrorConfig returns production defaults for the mirror.
func DefaultMirrorConfig(url, prefix string) MirrorConfig {
	return MirrorConfig{
		URL:              url,
		SubjectPrefix:    prefix,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Mirror republishes in-process bus traffic to NATS JetStream subjects so
// external consumers can observe library activity. The mirror is best
// effort: a NATS outage never blocks indexing, it only pauses mirroring
// via the circuit breaker.
type Mirror struct {
	bus       *Bus
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	prefix    string
	logger    watermill.LoggerAdapter

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewMirror creates a NATS mirror for the given bus.
func NewMirror(cfg MirrorConfig, bus *Bus, logger watermill.LoggerAdapter) (*Mirror, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true, // The mirror owns its stream
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "nats-mirror",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	})

	return &Mirror{
		bus:       bus,
		publisher: pub,
		breaker:   breaker,
		prefix:    cfg.SubjectPrefix,
		logger:    logger,
	}, nil
}

// Run mirrors all bus topics until ctx is canceled.
func (m *Mirror) Run(ctx context.Context) error {
	for _, topic := range []string{TopicFiles, TopicProgress, TopicThumbs} {
		msgs, err := m.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		subject := m.prefix + "." + topic
		m.wg.Add(1)
		go m.forward(subject, msgs)
	}

	<-ctx.Done()
	m.wg.Wait()
	return nil
}

// forward republishes one topic's messages until the source channel closes.
func (m *Mirror) forward(subject string, msgs <-chan *message.Message) {
	defer m.wg.Done()

	for msg := range msgs {
		// Deduplication on the JetStream side keys off Nats-Msg-Id.
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}

		_, err := m.breaker.Execute(func() (interface{}, error) {
			return nil, m.publisher.Publish(subject, msg)
		})
		if err != nil {
			m.logger.Error("mirror publish failed", err, watermill.LogFields{
				"subject":      subject,
				"message_uuid": msg.UUID,
			})
		}
		msg.Ack()
	}
}

// BreakerState returns the circuit breaker state for monitoring.
func (m *Mirror) BreakerState() string {
	return m.breaker.State().String()
}

// Close shuts down the NATS publisher.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	return m.publisher.Close()
}
