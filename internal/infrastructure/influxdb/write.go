package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names used by the connection service.
const (
	// measurementOperation records one registry operation execution.
	measurementOperation = "registry_operation"
)

// RecordOperation writes a registry operation measurement.
//
// This satisfies the registry's Telemetry interface. The write is
// non-blocking; points are batched and sent asynchronously, and write
// failures surface via the error callback, never to the operation that
// produced the point.
//
// Parameters:
//   - operation: The registry operation name (e.g., "get_adapter_instances")
//   - tenantID: The tenant the operation ran for
//   - outcome: Outcome label ("ok", "not_found", "precondition_failed", ...)
//   - duration: Wall-clock time the operation took
func (c *Client) RecordOperation(operation, tenantID, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementOperation,
		map[string]string{
			"operation": operation,
			"tenant":    tenantID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
