package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hutanwatch/forest-monitor/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	connectTimeout       = 10 * time.Second
	connectRetryInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
	disconnectQuiesceMs  = 250
)

// MessageHandler processes one inbound message payload.
type MessageHandler func(topic string, payload []byte)

type route struct {
	qos     byte
	handler paho.MessageHandler
}

// Connection wraps the paho client and owns reconnection. Every route
// subscribed through it is recorded and re-established on each successful
// (re)connect, so a broker restart never silently loses the subscription.
type Connection struct {
	client paho.Client
	logger *zap.Logger

	mu     sync.Mutex
	routes map[string]route
}

// NewConnection creates the broker connection and registers its lifecycle.
// The initial connect keeps retrying with backoff until the start context
// expires; once connected, paho's auto-reconnect takes over with the same
// capped interval.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*Connection, error) {
	conn := &Connection{
		logger: logger,
		routes: make(map[string]route),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTT.BrokerURL()).
		SetClientID(cfg.MQTT.ClientID).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetOrderMatters(true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.Info("mqtt connection established", zap.String("broker", cfg.MQTT.BrokerURL()))
		conn.resubscribe()
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.Warn("mqtt connection lost, reconnecting", zap.Error(err))
	})

	conn.client = paho.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("attempting to connect to mqtt broker...", zap.String("broker", cfg.MQTT.BrokerURL()))
			token := conn.client.Connect()
			if !token.WaitTimeout(connectTimeout) {
				return fmt.Errorf("[MQTT CONNECTION FAILED] timed out connecting to broker %s", cfg.MQTT.BrokerURL())
			}
			if err := token.Error(); err != nil {
				return fmt.Errorf("[MQTT CONNECTION FAILED] cannot connect to broker. Please check: 1) Broker is running, 2) MQTT_BROKER_HOST/PORT are correct. Error: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			conn.client.Disconnect(disconnectQuiesceMs)
			logger.Info("mqtt connection closed")
			return nil
		},
	})

	return conn, nil
}

// Subscribe registers a handler for a topic and remembers it for
// re-subscription after reconnects.
func (c *Connection) Subscribe(topic string, qos byte, handler MessageHandler) error {
	wrapped := func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}

	c.mu.Lock()
	c.routes[topic] = route{qos: qos, handler: wrapped}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, wrapped)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe drops a topic from the live subscription and the reconnect
// set.
func (c *Connection) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()

	token := c.client.Unsubscribe(topic)
	token.WaitTimeout(connectTimeout)
	return token.Error()
}

// Publish sends one payload to a topic, bounded by the context deadline.
func (c *Connection) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) resubscribe() {
	c.mu.Lock()
	routes := make(map[string]route, len(c.routes))
	for topic, r := range c.routes {
		routes[topic] = r
	}
	c.mu.Unlock()

	for topic, r := range routes {
		token := c.client.Subscribe(topic, r.qos, r.handler)
		if token.WaitTimeout(connectTimeout) && token.Error() == nil {
			c.logger.Info("subscription re-established", zap.String("topic", topic))
		} else {
			c.logger.Error("failed to re-establish subscription",
				zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
}
