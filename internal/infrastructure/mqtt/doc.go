// Package mqtt provides the MQTT broker client for Conduit Connection.
//
// The connection service publishes two kinds of messages:
//
//   - connection events: adapter-instance claims and releases, and
//     last-known-gateway updates, on per-device topics under
//     conduit/connection/{tenant}/{device}/
//   - service status: a retained online/offline message on
//     conduit/system/connection/status, backed by a Last Will so the
//     broker flips it on an unexpected disconnect
//
// The client is publish-only. It reconnects automatically with
// exponential backoff; publishes while disconnected fail fast with
// ErrNotConnected and are not queued.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.ConnectionGateway("tenant-1", "dev-1")
//	err = client.Publish(topic, payload, byte(cfg.MQTT.QoS), false)
package mqtt
