package influxdb_test

import (
	"errors"
	"testing"
	"time"

	"github.com/conduitiot/conduit-connection/internal/infrastructure/config"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/influxdb"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:1", // nothing listens here
		Token:         "test-token",
		Org:           "conduit",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// TestRecordOperation_Disconnected ensures recording on a closed client is
// a no-op rather than a panic; the registry calls this on every operation
// without checking connectivity first.
func TestRecordOperation_Disconnected(t *testing.T) {
	client := &influxdb.Client{}

	client.RecordOperation("get_adapter_instances", "tenant-1", "ok", 5*time.Millisecond)
	client.WritePoint("registry_operation", map[string]string{"operation": "x"}, map[string]interface{}{"v": 1})
}
