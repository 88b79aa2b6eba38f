// Package influxdb provides the operation telemetry sink for Conduit
// Connection.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The
// registry reports one point per operation (name, tenant, outcome,
// duration); dashboards aggregate these into lookup latency and error
// rate views.
//
// Telemetry is optional: when disabled in config the service runs with a
// no-op recorder and this package is never initialised.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.SetTelemetry(client)
//
// Writes are asynchronous; register an error callback with SetOnError to
// log batched write failures.
package influxdb
