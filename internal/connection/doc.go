// Package connection provides the Device Connection Registry for the
// Conduit platform.
//
// The registry is the lookup service on the command-routing path: given a
// tenant and device it answers which protocol-adapter instance currently
// holds the device's live session (possibly via a gateway), and which
// gateway most recently acted on the device's behalf. Applications
// consult it before dispatching a command downstream; adapter instances
// update it as devices connect and disconnect.
//
// # Data model
//
// Two flat mappings live in a shared cache, partitioned by tenant through
// the key encoding:
//
//   - gw@@{tenant}@@{device} -> gateway id (last known gateway; the
//     device's own id when it connects directly)
//   - ai@@{tenant}@@{device} -> adapter instance id (current command
//     handler for the device or gateway)
//
// Gateway entries are last-writer-wins and never removed here. Adapter
// instance entries are written unconditionally but removed only through
// an optimistic check: the removal compares both the registered value and
// the store-assigned version, so an instance can deregister itself
// without ever erasing a concurrent takeover.
//
// # Lookup strategy
//
// Resolving a device that may speak through many gateways could cost one
// cache read per gateway. The registry bounds that: for small gateway
// sets it batches the device and every gateway into one read; for large
// sets it reads the last known gateway first and only falls back to the
// full batch when that shortcut finds nothing. A registration for the
// device itself always takes precedence over any gateway's.
//
// # Failure model
//
// Absent mappings surface as ErrNotFound, rejected removals as
// ErrPreconditionFailed, malformed identifiers as ErrInvalidArgument, and
// every store-level failure as ErrInternal with the cause wrapped. The
// registry performs no retries; retry policy belongs to callers.
package connection
