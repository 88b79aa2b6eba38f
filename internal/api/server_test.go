package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conduitiot/conduit-connection/internal/cache/embedded"
	"github.com/conduitiot/conduit-connection/internal/connection"
	"github.com/conduitiot/conduit-connection/internal/health"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/config"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/logging"
)

// newTestServer builds a server over an embedded cache and returns it
// with its router.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	registry := connection.NewRegistry(embedded.New())
	checks := health.NewRegistry()
	registry.RegisterReadinessChecks(checks)

	server, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Logger: logging.New(config.LoggingConfig{
			Level:  "error",
			Format: "json",
			Output: "stderr",
		}, "test"),
		Registry: registry,
		Health:   checks,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return server, server.buildRouter()
}

// do runs one request through the router and returns the recorder.
func do(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNew_MissingDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHandleReady(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/v1/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string `json:"status"`
		Checks []struct {
			Name  string `json:"name"`
			Ready bool   `json:"ready"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("status = %q, want ready", body.Status)
	}
	if len(body.Checks) != 1 || body.Checks[0].Name != "remote-cache-connection" {
		t.Errorf("checks = %+v, want remote-cache-connection", body.Checks)
	}
}

func TestLastKnownGatewayRoundTrip(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/v1/tenants/T1/devices/dev-1/last-known-gateway/gw-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/tenants/T1/devices/dev-1/last-known-gateway", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["gateway-id"] != "gw-1" {
		t.Errorf(`body = %v, want {"gateway-id": "gw-1"}`, body)
	}
}

func TestGetLastKnownGateway_NotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/v1/tenants/T1/devices/absent/last-known-gateway", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetLastKnownGateway_InvalidID(t *testing.T) {
	_, router := newTestServer(t)

	// A device id containing the key separator is rejected as a bad request.
	rec := do(t, router, http.MethodPut, "/api/v1/tenants/T1/devices/dev@@1/last-known-gateway/gw-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAdapterInstanceLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	// Register.
	rec := do(t, router, http.MethodPut, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/adapter-A", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", rec.Code)
	}

	// Lookup without gateways.
	rec = do(t, router, http.MethodPost, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/lookup",
		[]byte(`{"via-gateways": []}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want 200", rec.Code)
	}

	var body struct {
		Instances []struct {
			DeviceID          string `json:"device-id"`
			AdapterInstanceID string `json:"adapter-instance-id"`
		} `json:"adapter-instances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(body.Instances) != 1 ||
		body.Instances[0].DeviceID != "dev-1" ||
		body.Instances[0].AdapterInstanceID != "adapter-A" {
		t.Errorf("body = %+v, want dev-1/adapter-A", body)
	}

	// Removal with the wrong instance id must fail the precondition and
	// leave the mapping in place.
	rec = do(t, router, http.MethodDelete, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/adapter-B", nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("DELETE status = %d, want 412", rec.Code)
	}

	// Removal with the right instance id succeeds.
	rec = do(t, router, http.MethodDelete, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/adapter-A", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}

	// The mapping is gone.
	rec = do(t, router, http.MethodPost, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/lookup",
		[]byte(`{"via-gateways": []}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("lookup status = %d, want 404", rec.Code)
	}
}

func TestRemoveAdapterInstance_Absent(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodDelete, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/adapter-A", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLookup_ViaGateways(t *testing.T) {
	_, router := newTestServer(t)

	// Two gateways registered, last known gateway picks the winner.
	for _, put := range []string{
		"/api/v1/tenants/T1/devices/gw-1/adapter-instances/adapter-A",
		"/api/v1/tenants/T1/devices/gw-2/adapter-instances/adapter-B",
		"/api/v1/tenants/T1/devices/dev-1/last-known-gateway/gw-2",
	} {
		if rec := do(t, router, http.MethodPut, put, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("PUT %s status = %d, want 204", put, rec.Code)
		}
	}

	rec := do(t, router, http.MethodPost, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/lookup",
		[]byte(`{"via-gateways": ["gw-1", "gw-2"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want 200", rec.Code)
	}

	var body struct {
		Instances []struct {
			DeviceID          string `json:"device-id"`
			AdapterInstanceID string `json:"adapter-instance-id"`
		} `json:"adapter-instances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(body.Instances) != 1 ||
		body.Instances[0].DeviceID != "gw-2" ||
		body.Instances[0].AdapterInstanceID != "adapter-B" {
		t.Errorf("body = %+v, want exactly gw-2/adapter-B", body)
	}
}

func TestLookup_InvalidBody(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/lookup",
		[]byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestLookup_EmptyBody treats a missing body as an empty gateway set, so
// adapters can issue the simple form without a payload.
func TestLookup_EmptyBody(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/adapter-A", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/tenants/T1/devices/dev-1/adapter-instances/lookup", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
