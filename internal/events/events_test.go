package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeBroker records published messages for assertions.
type fakeBroker struct {
	mu         sync.Mutex
	topics     []string
	payloads   [][]byte
	publishErr error
}

func (f *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

// warnCounter counts warnings to verify failures are logged, not raised.
type warnCounter struct {
	mu    sync.Mutex
	count int
}

func (w *warnCounter) Warn(string, ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count++
}

func TestLastKnownGatewayUpdated(t *testing.T) {
	broker := &fakeBroker{}
	pub := NewPublisher(broker, 1)

	pub.LastKnownGatewayUpdated("tenant-1", "dev-1", "gw-1")

	if len(broker.topics) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(broker.topics))
	}
	if broker.topics[0] != "conduit/connection/tenant-1/dev-1/gateway" {
		t.Errorf("topic = %q", broker.topics[0])
	}

	var event Event
	if err := json.Unmarshal(broker.payloads[0], &event); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if event.Type != TypeGatewayUpdated {
		t.Errorf("type = %q, want %q", event.Type, TypeGatewayUpdated)
	}
	if event.GatewayID != "gw-1" {
		t.Errorf("gateway id = %q, want gw-1", event.GatewayID)
	}
	if event.AdapterInstanceID != "" {
		t.Errorf("adapter instance id should be empty, got %q", event.AdapterInstanceID)
	}
	if event.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestAdapterInstanceEvents(t *testing.T) {
	broker := &fakeBroker{}
	pub := NewPublisher(broker, 1)

	pub.AdapterInstanceClaimed("tenant-1", "dev-1", "adapter-A")
	pub.AdapterInstanceReleased("tenant-1", "dev-1", "adapter-A")

	if len(broker.topics) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(broker.topics))
	}
	for _, topic := range broker.topics {
		if topic != "conduit/connection/tenant-1/dev-1/adapter-instance" {
			t.Errorf("topic = %q", topic)
		}
	}

	var claimed, released Event
	if err := json.Unmarshal(broker.payloads[0], &claimed); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if err := json.Unmarshal(broker.payloads[1], &released); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if claimed.Type != TypeInstanceClaimed {
		t.Errorf("first event type = %q, want %q", claimed.Type, TypeInstanceClaimed)
	}
	if released.Type != TypeInstanceReleased {
		t.Errorf("second event type = %q, want %q", released.Type, TypeInstanceReleased)
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	broker := &fakeBroker{publishErr: errors.New("broker down")}
	warns := &warnCounter{}

	pub := NewPublisher(broker, 1)
	pub.SetLogger(warns)

	// Must not panic or propagate the error.
	pub.AdapterInstanceClaimed("tenant-1", "dev-1", "adapter-A")

	if warns.count != 1 {
		t.Errorf("expected 1 warning, got %d", warns.count)
	}
}
