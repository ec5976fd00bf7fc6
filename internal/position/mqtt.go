package position

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"chizu/campus-client/internal/model"
)

const subscribeTimeout = 5 * time.Second

// Subscriber is the part of an MQTT client the position feed needs.
// mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Fix is the JSON payload published on the position topic.
type Fix struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// MQTTSource watches a topic carrying Fix payloads.
type MQTTSource struct {
	client Subscriber
	topic  string
	logger *slog.Logger
}

// NewMQTTSource creates a source reading fixes from topic.
func NewMQTTSource(client Subscriber, topic string, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{client: client, topic: topic, logger: logger}
}

// Subscribe starts a watch. Malformed payloads are logged and skipped.
func (m *MQTTSource) Subscribe(ctx context.Context) (*Subscription, error) {
	var sub *Subscription
	ready := make(chan struct{})

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		<-ready
		p, err := DecodeFix(msg.Payload())
		if err != nil {
			m.logger.Warn("dropping malformed position", "topic", msg.Topic(), "error", err)
			return
		}
		sub.Deliver(p)
	}

	sub = NewSubscription(ctx, func() {
		token := m.client.Unsubscribe(m.topic)
		if token.WaitTimeout(subscribeTimeout) && token.Error() != nil {
			m.logger.Warn("failed to unsubscribe from position topic", "topic", m.topic, "error", token.Error())
		}
	})
	close(ready)

	token := m.client.Subscribe(m.topic, 0, handler)
	if !token.WaitTimeout(subscribeTimeout) {
		sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: timed out", m.topic)
	}
	if err := token.Error(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", m.topic, err)
	}

	m.logger.Debug("watching position topic", "topic", m.topic)
	return sub, nil
}

// DecodeFix parses a position payload.
func DecodeFix(data []byte) (Position, error) {
	var fix Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return Position{}, fmt.Errorf("decode fix: %w", err)
	}
	if fix.Lat < -90 || fix.Lat > 90 || fix.Lng < -180 || fix.Lng > 180 {
		return Position{}, fmt.Errorf("decode fix: coordinates out of range (%f,%f)", fix.Lat, fix.Lng)
	}

	ts := time.Now().UTC()
	if fix.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, fix.Timestamp)
		if err != nil {
			return Position{}, fmt.Errorf("decode fix timestamp: %w", err)
		}
		ts = parsed
	}

	return Position{
		At:        model.LatLng{Lat: fix.Lat, Lng: fix.Lng},
		Accuracy:  fix.Accuracy,
		Timestamp: ts,
	}, nil
}
