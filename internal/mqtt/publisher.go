package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"netsentry/internal/logger"
	"netsentry/internal/service"
)

// TokenPublisher is the part of mqtt.Client the publisher needs
type TokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// PublisherConfig holds configuration for the event publisher
type PublisherConfig struct {
	// TopicPrefix is prepended to the event type, e.g. "netsentry"
	TopicPrefix string
	QoS         byte
	// PublishTimeout bounds the wait for the broker acknowledgement
	PublishTimeout time.Duration
}

// Publisher forwards monitor events to MQTT topics <prefix>/<event type>
type Publisher struct {
	client TokenPublisher
	config PublisherConfig
	logger logger.Logger
}

// NewPublisher creates a Publisher
func NewPublisher(client TokenPublisher, config PublisherConfig, log logger.Logger) *Publisher {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "netsentry"
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}

	return &Publisher{
		client: client,
		config: config,
		logger: log.WithComponent("mqtt-publisher"),
	}
}

// Start publishes events from the channel until ctx is cancelled or the
// channel is closed
func (p *Publisher) Start(ctx context.Context, events <-chan service.Event) {
	p.logger.Info().Str("prefix", p.config.TopicPrefix).Msg("MQTT publisher starting")

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				p.logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish event")
			}
		}
	}
}

// Publish sends one event
func (p *Publisher) Publish(ev service.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := Topic(p.config.TopicPrefix, string(ev.Type))

	token := p.client.Publish(topic, p.config.QoS, false, payload)
	if !token.WaitTimeout(p.config.PublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Msg("Published event")
	return nil
}

// Topic joins prefix and event type
func Topic(prefix, eventType string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + eventType
}
