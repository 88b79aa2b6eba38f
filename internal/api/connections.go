package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// LookupRequest is the body of an adapter-instance lookup. ViaGateways
// lists the gateways permitted to act on the device's behalf; it may be
// empty for directly connected devices.
type LookupRequest struct {
	ViaGateways []string `json:"via-gateways"`
}

// handleGetLastKnownGateway returns the gateway that most recently acted
// on behalf of the device.
//
// GET /api/v1/tenants/{tenant}/devices/{device}/last-known-gateway
func (s *Server) handleGetLastKnownGateway(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	deviceID := chi.URLParam(r, "device")

	result, err := s.registry.LastKnownGateway(r.Context(), tenantID, deviceID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSetLastKnownGateway records the gateway that most recently acted
// on behalf of the device.
//
// PUT /api/v1/tenants/{tenant}/devices/{device}/last-known-gateway/{gateway}
func (s *Server) handleSetLastKnownGateway(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	deviceID := chi.URLParam(r, "device")
	gatewayID := chi.URLParam(r, "gateway")

	if err := s.registry.SetLastKnownGateway(r.Context(), tenantID, deviceID, gatewayID); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetAdapterInstance registers an adapter instance as the command
// handler for the device.
//
// PUT /api/v1/tenants/{tenant}/devices/{device}/adapter-instances/{instance}
func (s *Server) handleSetAdapterInstance(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	deviceID := chi.URLParam(r, "device")
	instanceID := chi.URLParam(r, "instance")

	if err := s.registry.SetAdapterInstance(r.Context(), tenantID, deviceID, instanceID); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveAdapterInstance removes the adapter-instance mapping, but
// only while the given instance is still the registered value. A 412
// response means another instance has taken over in the meantime.
//
// DELETE /api/v1/tenants/{tenant}/devices/{device}/adapter-instances/{instance}
func (s *Server) handleRemoveAdapterInstance(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	deviceID := chi.URLParam(r, "device")
	instanceID := chi.URLParam(r, "instance")

	if err := s.registry.RemoveAdapterInstance(r.Context(), tenantID, deviceID, instanceID); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLookupAdapterInstances resolves the adapter instances able to
// handle commands for the device, considering the via-gateways in the
// request body.
//
// POST /api/v1/tenants/{tenant}/devices/{device}/adapter-instances/lookup
func (s *Server) handleLookupAdapterInstances(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	deviceID := chi.URLParam(r, "device")

	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.registry.AdapterInstances(r.Context(), tenantID, deviceID, req.ViaGateways)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
