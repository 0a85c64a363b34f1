// Package publish mirrors the live readings to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/view"
)

const (
	// DefaultPublishTimeout bounds how long Render waits for the broker.
	DefaultPublishTimeout = 50 * time.Millisecond

	disconnectQuiesce = 250 // ms
)

// Ensure MQTT is a live view.
var _ view.View = (*MQTT)(nil)

// publisher is the part of mqtt.Client used by MQTT.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Payload is the JSON document published for every update.
type Payload struct {
	Cycle    int       `json:"cycle"`
	Channels []string  `json:"channels"`
	Voltage  []float64 `json:"voltage"`
	Current  []float64 `json:"current"`
}

// MQTT publishes every update to a topic. Render waits at most the publish
// timeout, so a slow broker drops updates instead of delaying acquisition.
type MQTT struct {
	client   publisher
	topic    string
	channels []string
	timeout  time.Duration

	dropped int
}

// NewMQTT connects to cfg.Server and returns the view.
func NewMQTT(cfg config.MQTTConfig, channels []string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Printf("Publishing live readings to %s topic %q", cfg.Server, cfg.Topic)

	return newMQTT(client, cfg.Topic, channels, cfg.PublishTimeout), nil
}

func newMQTT(client publisher, topic string, channels []string, timeout time.Duration) *MQTT {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &MQTT{client: client, topic: topic, channels: channels, timeout: timeout}
}

func (m *MQTT) Render(u view.Update) {
	b, err := json.Marshal(Payload{
		Cycle:    u.Cycle,
		Channels: m.channels,
		Voltage:  u.Voltage,
		Current:  u.Current,
	})
	if err != nil {
		log.Printf("mqtt payload: %v", err)
		return
	}

	token := m.client.Publish(m.topic, 0, false, b)
	if !token.WaitTimeout(m.timeout) {
		m.dropped++
		if m.dropped == 1 || m.dropped%100 == 0 {
			log.Printf("mqtt publish timed out, %d update(s) dropped", m.dropped)
		}
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt publish error: %v", err)
	}
}

// Dropped returns the number of updates that timed out.
func (m *MQTT) Dropped() int { return m.dropped }

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
