package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/homee/internal/domain/home"
)

const (
	// mqttQoS is "at least once"; the broker side deduplicates by event ID if needed.
	mqttQoS = 1
	// mqttQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
	mqttQuiesce = 250
)

// errPublishTimeout is returned when the broker does not acknowledge in time.
var errPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the subset of the paho client used by MQTTWriter.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTWriter publishes each event as JSON under <topic>/<kind>.
type MQTTWriter struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

// mqttMessage is the JSON body of a published event.
type mqttMessage struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// DialMQTT connects to broker and returns a writer publishing under topic.
func DialMQTT(_ context.Context, broker, clientID, topic string, timeout time.Duration) (*MQTTWriter, error) {
	if clientID == "" {
		hostname, _ := os.Hostname()
		clientID = fmt.Sprintf("homee/%s-%d", hostname, os.Getpid())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to %s: %w", broker, errPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	return NewMQTTWriter(client, topic, timeout), nil
}

// NewMQTTWriter wraps an already connected client.
func NewMQTTWriter(client Publisher, topic string, timeout time.Duration) *MQTTWriter {
	return &MQTTWriter{
		client:  client,
		topic:   topic,
		timeout: timeout,
	}
}

// Name implements Writer.
func (w *MQTTWriter) Name() string {
	return "mqtt"
}

// Write implements Writer.
func (w *MQTTWriter) Write(_ context.Context, ev home.Event) error {
	data, err := json.Marshal(mqttMessage{
		ID:        ev.ID,
		Kind:      string(ev.Kind),
		Source:    ev.Source,
		Timestamp: ev.Timestamp.UTC(),
		Payload:   ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	token := w.client.Publish(w.topic+"/"+string(ev.Kind), mqttQoS, false, data)
	if !token.WaitTimeout(w.timeout) {
		return errPublishTimeout
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (w *MQTTWriter) Close() error {
	w.client.Disconnect(mqttQuiesce)

	return nil
}
