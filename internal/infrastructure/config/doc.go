// Package config provides configuration loading for Conduit Connection.
//
// Configuration comes from three layers, later layers overriding earlier
// ones: hardcoded defaults, a YAML file, and CONDUIT_* environment
// variables. The loaded configuration is validated before use; the
// service refuses to start on validation failure rather than limping
// along with a half-usable setup.
//
// # Sections
//
//   - service: instance identity
//   - cache: backend selection (redis, sqlite, embedded) and settings
//   - registry: lookup strategy tuning
//   - api: HTTP server binding, timeouts, TLS, CORS
//   - mqtt: broker for connection event publishing (optional)
//   - influxdb: operation telemetry sink (optional)
//   - logging: level, format, destination
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
