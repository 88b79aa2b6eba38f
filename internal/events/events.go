// Package events publishes connection lifecycle notifications for the
// Conduit platform.
//
// Whenever the registry records or removes a mapping, downstream
// consumers (application routers, dashboards) may want to know without
// polling. The publisher turns successful registry mutations into MQTT
// messages on per-device topics. Publishing is strictly best-effort: a
// broker outage is logged and otherwise ignored, and never fails the
// registry operation that triggered the event.
package events

import (
	"encoding/json"
	"time"

	"github.com/conduitiot/conduit-connection/internal/infrastructure/mqtt"
)

// Event type values carried in the payload.
const (
	TypeGatewayUpdated   = "last-known-gateway-updated"
	TypeInstanceClaimed  = "adapter-instance-claimed"
	TypeInstanceReleased = "adapter-instance-released"
)

// Broker is the publishing capability the publisher needs. Satisfied by
// *mqtt.Client; tests substitute a recording fake.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by the publisher.
type Logger interface {
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Event is the JSON payload published for every connection change.
type Event struct {
	Type              string `json:"type"`
	TenantID          string `json:"tenant-id"`
	DeviceID          string `json:"device-id"`
	GatewayID         string `json:"gateway-id,omitempty"`
	AdapterInstanceID string `json:"adapter-instance-id,omitempty"`
	Timestamp         string `json:"timestamp"`
}

// Publisher emits connection events over MQTT. It implements the
// registry's Events interface.
type Publisher struct {
	broker Broker
	qos    byte
	logger Logger
}

// NewPublisher creates an event publisher on top of the given broker
// connection.
func NewPublisher(broker Broker, qos byte) *Publisher {
	return &Publisher{
		broker: broker,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for publish failures.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// LastKnownGatewayUpdated publishes a gateway mapping change.
func (p *Publisher) LastKnownGatewayUpdated(tenantID, deviceID, gatewayID string) {
	topic := mqtt.Topics{}.ConnectionGateway(tenantID, deviceID)
	p.publish(topic, Event{
		Type:      TypeGatewayUpdated,
		TenantID:  tenantID,
		DeviceID:  deviceID,
		GatewayID: gatewayID,
	})
}

// AdapterInstanceClaimed publishes an adapter instance registration.
func (p *Publisher) AdapterInstanceClaimed(tenantID, deviceID, adapterInstanceID string) {
	topic := mqtt.Topics{}.ConnectionAdapterInstance(tenantID, deviceID)
	p.publish(topic, Event{
		Type:              TypeInstanceClaimed,
		TenantID:          tenantID,
		DeviceID:          deviceID,
		AdapterInstanceID: adapterInstanceID,
	})
}

// AdapterInstanceReleased publishes a successful adapter instance removal.
func (p *Publisher) AdapterInstanceReleased(tenantID, deviceID, adapterInstanceID string) {
	topic := mqtt.Topics{}.ConnectionAdapterInstance(tenantID, deviceID)
	p.publish(topic, Event{
		Type:              TypeInstanceReleased,
		TenantID:          tenantID,
		DeviceID:          deviceID,
		AdapterInstanceID: adapterInstanceID,
	})
}

// publish serialises and sends one event. Failures are logged, not
// returned; the caller has already committed its change.
func (p *Publisher) publish(topic string, event Event) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode connection event",
			"type", event.Type, "tenant", event.TenantID, "device", event.DeviceID, "error", err)
		return
	}

	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("failed to publish connection event",
			"type", event.Type, "tenant", event.TenantID, "device", event.DeviceID, "error", err)
	}
}
