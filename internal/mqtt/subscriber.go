package mqtt

import (
	"context"

	"go.uber.org/zap"
)

// Subscriber maintains the one logical subscription to the telemetry topic
// and hands every inbound payload to the ingestion pipeline. Paho delivers
// messages from a live connection in order and invokes the handler
// synchronously (SetOrderMatters), which is what the per-sensor ordering
// guarantee rests on.
type Subscriber struct {
	conn    *Connection
	topic   string
	logger  *zap.Logger
	process func(ctx context.Context, payload []byte)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSubscriber creates the subscription loop for one topic.
func NewSubscriber(conn *Connection, topic string, logger *zap.Logger, process func(ctx context.Context, payload []byte)) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		conn:    conn,
		topic:   topic,
		logger:  logger,
		process: process,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes at QoS 1 (at-least-once; duplicates are tolerated
// downstream, not deduplicated). A failure while handling one message is
// contained so it cannot take down the transport's read path.
func (s *Subscriber) Start() error {
	err := s.conn.Subscribe(s.topic, 1, func(topic string, payload []byte) {
		if s.ctx.Err() != nil {
			return
		}
		s.handle(payload)
	})
	if err != nil {
		return err
	}

	s.logger.Info("subscriber started", zap.String("topic", s.topic))
	return nil
}

// Stop unsubscribes and prevents further pipeline dispatches. In-flight
// handler runs finish on their own.
func (s *Subscriber) Stop() error {
	s.cancel()
	if err := s.conn.Unsubscribe(s.topic); err != nil {
		s.logger.Error("failed to unsubscribe", zap.String("topic", s.topic), zap.Error(err))
		return err
	}
	s.logger.Info("subscriber stopped", zap.String("topic", s.topic))
	return nil
}

func (s *Subscriber) handle(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing message, dropping it", zap.Any("panic", r))
		}
	}()

	s.process(s.ctx, payload)
}
