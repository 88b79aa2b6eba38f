package mqtt

import "fmt"

// Topic prefixes for Conduit platform messaging.
//
// Connection event topics use the scheme:
// conduit/connection/{tenant}/{device}/{mapping}
const (
	// TopicPrefixConnection is the base for connection event topics.
	TopicPrefixConnection = "conduit/connection"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "conduit/system"
)

// Topics provides builders for Conduit MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.ConnectionAdapterInstance("tenant-1", "dev-1")
//	// Returns: "conduit/connection/tenant-1/dev-1/adapter-instance"
type Topics struct{}

// ConnectionGateway returns the topic for last-known-gateway updates of a
// device.
//
// Example: conduit/connection/tenant-1/dev-1/gateway
func (Topics) ConnectionGateway(tenantID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/gateway", TopicPrefixConnection, tenantID, deviceID)
}

// ConnectionAdapterInstance returns the topic for adapter-instance claim
// and release events of a device.
//
// Example: conduit/connection/tenant-1/dev-1/adapter-instance
func (Topics) ConnectionAdapterInstance(tenantID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/adapter-instance", TopicPrefixConnection, tenantID, deviceID)
}

// SystemStatus returns the service status topic.
//
// Example: conduit/system/connection/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/connection/status", TopicPrefixSystem)
}

// AllConnectionEvents returns a pattern matching every connection event
// for a tenant. Use "+" as tenantID to match all tenants.
//
// Pattern: conduit/connection/tenant-1/+/+
func (Topics) AllConnectionEvents(tenantID string) string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefixConnection, tenantID)
}
