// Package api exposes the connection registry over HTTP.
//
// # Endpoints
//
// All routes live under /api/v1:
//
//	GET    /health
//	GET    /ready
//	GET    /tenants/{tenant}/devices/{device}/last-known-gateway
//	PUT    /tenants/{tenant}/devices/{device}/last-known-gateway/{gateway}
//	PUT    /tenants/{tenant}/devices/{device}/adapter-instances/{instance}
//	DELETE /tenants/{tenant}/devices/{device}/adapter-instances/{instance}
//	POST   /tenants/{tenant}/devices/{device}/adapter-instances/lookup
//
// The lookup body is {"via-gateways": ["gw-1", ...]}; responses carry the
// registry's result shapes verbatim ({"gateway-id": ...} and
// {"adapter-instances": [...]}).
//
// # Error mapping
//
// Registry error kinds map onto status codes: invalid argument 400,
// not found 404, precondition failed 412, store failure 500. Store-level
// causes never reach the response body.
//
// Caller authentication is deliberately absent; the platform gateway in
// front of this service handles it.
package api
