package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/am2302-sensor/internal/logic"
)

const (
	clientID       = "am2302-sensor"
	outboxSize     = 256
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are queued and sent after reconnecting.
type RealPublisher struct {
	client client
	now    func() time.Time

	mu        sync.Mutex
	outbox    *outbox
	connected bool // a connection has been made at least once
}

func newPublisher(c client) *RealPublisher {
	return &RealPublisher{
		client: c,
		now:    time.Now,
		outbox: newOutbox(outboxSize),
	}
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: paho keeps retrying in the background and
// messages are queued meanwhile.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	p := newPublisher(nil)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if token.WaitTimeout(connectTimeout) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		log.Printf("mqtt: %s not reachable yet, queueing until connected", broker)
	}

	return p, nil
}

// onConnect flushes queued messages. On reconnection a RECONNECTED system
// event goes out first.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.outbox.drain()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, sending %d queued messages", len(pending))
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			pending = append([]message{{topic: TopicSystem, payload: payload, qos: 1}}, pending...)
		}
	}

	for i, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: flush failed, requeueing %d messages: %v", len(pending)-i, err)
			p.mu.Lock()
			for _, rest := range pending[i:] {
				p.outbox.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
}

// Publish sends a reading event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(message{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	return p.publish(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m message) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.outbox.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(m); err != nil {
		p.mu.Lock()
		p.outbox.push(m)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(m message) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Pending returns the number of queued messages.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
