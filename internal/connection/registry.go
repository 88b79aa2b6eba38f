package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduitiot/conduit-connection/internal/cache"
	"github.com/conduitiot/conduit-connection/internal/health"
)

// DefaultViaGatewaysThreshold is the via-gateway count at or below which a
// lookup queries the device and all gateways in one batch. Above it, the
// last known gateway is tried first to keep the batch small. The default
// preserves behavioural compatibility with existing deployments.
const DefaultViaGatewaysThreshold = 3

// remoteCacheCheckTimeout bounds the readiness probe of the shared cache.
const remoteCacheCheckTimeout = 1000 * time.Millisecond

// remoteCacheCheckName is the registered name of the cache readiness probe.
const remoteCacheCheckName = "remote-cache-connection"

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Events receives notifications after successful registry mutations.
// Implementations must not block; failures are the implementation's
// concern and never fail the triggering operation.
type Events interface {
	// LastKnownGatewayUpdated fires after a gateway mapping write.
	LastKnownGatewayUpdated(tenantID, deviceID, gatewayID string)

	// AdapterInstanceClaimed fires after an adapter instance registers
	// itself for a device or gateway.
	AdapterInstanceClaimed(tenantID, deviceID, adapterInstanceID string)

	// AdapterInstanceReleased fires after a conditional removal succeeds.
	AdapterInstanceReleased(tenantID, deviceID, adapterInstanceID string)
}

// Telemetry records per-operation measurements. Implementations must not
// block the calling goroutine.
type Telemetry interface {
	RecordOperation(operation, tenantID, outcome string, duration time.Duration)
}

// Registry answers which adapter instance handles commands for a device,
// and which gateway last acted on a device's behalf. All state lives in
// the shared cache; the registry itself holds no mutable data, so a single
// instance serves any number of concurrent callers.
type Registry struct {
	store     cache.Cache
	threshold int
	logger    Logger
	events    Events
	telemetry Telemetry
}

// NewRegistry creates a connection registry on top of the given cache.
func NewRegistry(store cache.Cache) *Registry {
	return &Registry{
		store:     store,
		threshold: DefaultViaGatewaysThreshold,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEvents sets the event sink notified after successful mutations.
func (r *Registry) SetEvents(events Events) {
	r.events = events
}

// SetTelemetry sets the telemetry recorder for operation measurements.
func (r *Registry) SetTelemetry(telemetry Telemetry) {
	r.telemetry = telemetry
}

// SetViaGatewaysThreshold overrides the lookup strategy switch point.
// Values below 1 are ignored.
func (r *Registry) SetViaGatewaysThreshold(threshold int) {
	if threshold < 1 {
		return
	}
	r.threshold = threshold
}

// RegisterReadinessChecks registers the registry's readiness probes with
// the given health registry. The cache probe fails when the store cannot
// be reached within its timeout.
func (r *Registry) RegisterReadinessChecks(h *health.Registry) {
	h.Register(remoteCacheCheckName, remoteCacheCheckTimeout, func(ctx context.Context) (map[string]string, error) {
		return r.store.CheckAvailability(ctx)
	})
}

// SetLastKnownGateway records gatewayID as the gateway that most recently
// acted on behalf of the device. When the device connects directly,
// gatewayID equals the device id. The write is unconditional;
// last-writer-wins.
//
// Returns ErrInvalidArgument for empty or malformed identifiers, and
// ErrInternal when the store write fails.
func (r *Registry) SetLastKnownGateway(ctx context.Context, tenantID, deviceID, gatewayID string) (err error) {
	defer r.record("set_last_known_gateway", tenantID, time.Now())(&err)

	if err := validateIDs(
		id{"tenant", tenantID},
		id{"device", deviceID},
		id{"gateway", gatewayID},
	); err != nil {
		return err
	}

	if err := r.store.Put(ctx, gatewayKey(tenantID, deviceID), gatewayID); err != nil {
		r.logger.Debug("failed to set last known gateway",
			"tenant", tenantID, "device", deviceID, "gateway", gatewayID, "error", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	r.logger.Debug("set last known gateway",
		"tenant", tenantID, "device", deviceID, "gateway", gatewayID)

	if r.events != nil {
		r.events.LastKnownGatewayUpdated(tenantID, deviceID, gatewayID)
	}
	return nil
}

// LastKnownGateway returns the gateway that most recently acted on behalf
// of the device.
//
// Returns ErrNotFound when no gateway has been recorded, and ErrInternal
// when the store read fails.
func (r *Registry) LastKnownGateway(ctx context.Context, tenantID, deviceID string) (result *LastKnownGateway, err error) {
	defer r.record("get_last_known_gateway", tenantID, time.Now())(&err)

	if err := validateIDs(id{"tenant", tenantID}, id{"device", deviceID}); err != nil {
		return nil, err
	}

	gatewayID, found, err := r.store.Get(ctx, gatewayKey(tenantID, deviceID))
	if err != nil {
		r.logger.Debug("failed to get last known gateway",
			"tenant", tenantID, "device", deviceID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !found {
		r.logger.Debug("no last known gateway found",
			"tenant", tenantID, "device", deviceID)
		return nil, ErrNotFound
	}

	r.logger.Debug("found last known gateway",
		"tenant", tenantID, "device", deviceID, "gateway", gatewayID)
	return &LastKnownGateway{GatewayID: gatewayID}, nil
}

// SetAdapterInstance records adapterInstanceID as the adapter instance
// currently handling commands for the device (or gateway) deviceID. The
// write is unconditional; a later registration by another instance simply
// replaces it.
//
// Returns ErrInvalidArgument for empty or malformed identifiers, and
// ErrInternal when the store write fails.
func (r *Registry) SetAdapterInstance(ctx context.Context, tenantID, deviceID, adapterInstanceID string) (err error) {
	defer r.record("set_adapter_instance", tenantID, time.Now())(&err)

	if err := validateIDs(
		id{"tenant", tenantID},
		id{"device", deviceID},
		id{"adapter instance", adapterInstanceID},
	); err != nil {
		return err
	}

	if err := r.store.Put(ctx, adapterKey(tenantID, deviceID), adapterInstanceID); err != nil {
		r.logger.Debug("failed to set command handling adapter instance",
			"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID, "error", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	r.logger.Debug("set command handling adapter instance",
		"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID)

	if r.events != nil {
		r.events.AdapterInstanceClaimed(tenantID, deviceID, adapterInstanceID)
	}
	return nil
}

// RemoveAdapterInstance removes the adapter-instance mapping for the
// device, but only while adapterInstanceID is still the registered value.
// The removal is optimistic: the entry's version is read first and the
// delete only applies when the version is unchanged, so a concurrent
// takeover by another instance is never erased.
//
// Returns ErrNotFound when no mapping exists, ErrPreconditionFailed when
// the stored value differs or the entry changed between read and removal,
// and ErrInternal when a store call fails.
func (r *Registry) RemoveAdapterInstance(ctx context.Context, tenantID, deviceID, adapterInstanceID string) (err error) {
	defer r.record("remove_adapter_instance", tenantID, time.Now())(&err)

	if err := validateIDs(
		id{"tenant", tenantID},
		id{"device", deviceID},
		id{"adapter instance", adapterInstanceID},
	); err != nil {
		return err
	}

	key := adapterKey(tenantID, deviceID)
	versioned, found, err := r.store.GetWithVersion(ctx, key)
	if err != nil {
		r.logger.Debug("failed to read entry when removing adapter instance",
			"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID, "error", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !found {
		r.logger.Debug("adapter instance not removed, entry not found",
			"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID)
		return ErrNotFound
	}
	if versioned.Value != adapterInstanceID {
		r.logger.Debug("adapter instance not removed, value did not match",
			"tenant", tenantID, "device", deviceID,
			"adapter_instance", adapterInstanceID, "stored", versioned.Value)
		return ErrPreconditionFailed
	}

	removed, err := r.store.RemoveWithVersion(ctx, key, versioned.Version)
	if err != nil {
		r.logger.Debug("failed to remove adapter instance",
			"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID, "error", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !removed {
		r.logger.Debug("adapter instance not removed, entry updated concurrently",
			"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID)
		return ErrPreconditionFailed
	}

	r.logger.Debug("removed command handling adapter instance",
		"tenant", tenantID, "device", deviceID, "adapter_instance", adapterInstanceID)

	if r.events != nil {
		r.events.AdapterInstanceReleased(tenantID, deviceID, adapterInstanceID)
	}
	return nil
}

// AdapterInstances resolves the adapter instances able to handle commands
// for the device, considering the gateways in viaGateways that may act on
// its behalf.
//
// An instance registered for the device itself always wins. Otherwise the
// result narrows to the last known gateway when that gateway is still in
// viaGateways and has a registered instance; failing that, every matching
// gateway mapping is returned and the caller chooses.
//
// The store access pattern depends on the via-gateway count: up to the
// configured threshold, the device and all gateways are read in one batch;
// above it, the last known gateway is tried first so the common case costs
// two small round trips instead of one large one.
//
// Returns ErrNotFound when neither the device nor any gateway has a
// registered instance, and ErrInternal when a store call fails.
func (r *Registry) AdapterInstances(ctx context.Context, tenantID, deviceID string, viaGateways []string) (result *AdapterInstances, err error) {
	defer r.record("get_adapter_instances", tenantID, time.Now())(&err)

	if err := validateIDs(id{"tenant", tenantID}, id{"device", deviceID}); err != nil {
		return nil, err
	}
	for _, gateway := range viaGateways {
		if err := validateIDs(id{"via gateway", gateway}); err != nil {
			return nil, err
		}
	}

	switch {
	case len(viaGateways) == 0:
		return r.instancesForDeviceOnly(ctx, tenantID, deviceID)
	case len(viaGateways) <= r.threshold:
		return r.instancesQueryingAllFirst(ctx, tenantID, deviceID, viaGateways)
	default:
		return r.instancesLastKnownFirst(ctx, tenantID, deviceID, viaGateways)
	}
}

// instancesForDeviceOnly handles the no-gateway case: a single read of the
// device's own adapter-instance entry.
func (r *Registry) instancesForDeviceOnly(ctx context.Context, tenantID, deviceID string) (*AdapterInstances, error) {
	instanceID, found, err := r.store.Get(ctx, adapterKey(tenantID, deviceID))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}
	if !found {
		r.logger.Debug("no command handling adapter instances found",
			"tenant", tenantID, "device", deviceID)
		return nil, ErrNotFound
	}

	r.logger.Debug("found command handling adapter instance for device",
		"tenant", tenantID, "device", deviceID, "adapter_instance", instanceID)
	return singleInstanceResult(deviceID, instanceID), nil
}

// instancesQueryingAllFirst reads the device and all via-gateways in one
// batch, then applies precedence. Used for small gateway sets, where the
// batch is cheap and usually answers the question without consulting the
// last known gateway at all.
func (r *Registry) instancesQueryingAllFirst(ctx context.Context, tenantID, deviceID string, viaGateways []string) (*AdapterInstances, error) {
	entries, err := r.store.GetAll(ctx, adapterKeys(tenantID, deviceID, viaGateways))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}
	byDevice := instancesByDevice(entries)

	switch {
	case len(byDevice) == 0:
		r.logger.Debug("no command handling adapter instances found",
			"tenant", tenantID, "device", deviceID)
		return nil, ErrNotFound

	case byDevice[deviceID] != "":
		// The device registered directly; that overrides any gateway entry.
		return r.deviceItselfResult(tenantID, deviceID, byDevice[deviceID]), nil

	case len(byDevice) == 1:
		for gatewayID, instanceID := range byDevice {
			r.logger.Debug("found command handling adapter instance via gateway",
				"tenant", tenantID, "device", deviceID,
				"gateway", gatewayID, "adapter_instance", instanceID)
			return singleInstanceResult(gatewayID, instanceID), nil
		}
		return nil, ErrNotFound // unreachable

	default:
		return r.narrowByLastKnownGateway(ctx, tenantID, deviceID, viaGateways, byDevice)
	}
}

// narrowByLastKnownGateway disambiguates multiple gateway matches using
// the last known gateway. When it is unknown, no longer permitted, or has
// no registered instance, every match is returned instead.
func (r *Registry) narrowByLastKnownGateway(ctx context.Context, tenantID, deviceID string, viaGateways []string, byDevice map[string]string) (*AdapterInstances, error) {
	lastKnown, found, err := r.store.Get(ctx, gatewayKey(tenantID, deviceID))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}

	switch {
	case !found:
		r.logger.Debug("returning all gateway adapter instances, no last known gateway",
			"tenant", tenantID, "device", deviceID, "count", len(byDevice))
	case !containsID(viaGateways, lastKnown):
		r.logger.Debug("returning all gateway adapter instances, last known gateway no longer valid",
			"tenant", tenantID, "device", deviceID, "last_known_gateway", lastKnown, "count", len(byDevice))
	case byDevice[lastKnown] == "":
		r.logger.Debug("returning all gateway adapter instances, last known gateway has no instance",
			"tenant", tenantID, "device", deviceID, "last_known_gateway", lastKnown, "count", len(byDevice))
	default:
		r.logger.Debug("returning adapter instance for last known gateway",
			"tenant", tenantID, "device", deviceID,
			"last_known_gateway", lastKnown, "adapter_instance", byDevice[lastKnown])
		return singleInstanceResult(lastKnown, byDevice[lastKnown]), nil
	}
	return instancesResult(byDevice), nil
}

// instancesLastKnownFirst reads the last known gateway first and, when it
// is usable, fetches only the device's and that gateway's entries. Used
// for large gateway sets, where reading every gateway up front would be
// wasteful. Falls back to the full batch when the narrow read finds
// nothing.
func (r *Registry) instancesLastKnownFirst(ctx context.Context, tenantID, deviceID string, viaGateways []string) (*AdapterInstances, error) {
	lastKnown, found, err := r.store.Get(ctx, gatewayKey(tenantID, deviceID))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}

	if !found {
		r.logger.Debug("no last known gateway found",
			"tenant", tenantID, "device", deviceID)
		return r.instancesWithoutLastKnownCheck(ctx, tenantID, deviceID, viaGateways)
	}
	if !containsID(viaGateways, lastKnown) {
		r.logger.Debug("last known gateway no longer valid for device",
			"tenant", tenantID, "device", deviceID, "last_known_gateway", lastKnown)
		return r.instancesWithoutLastKnownCheck(ctx, tenantID, deviceID, viaGateways)
	}

	entries, err := r.store.GetAll(ctx, adapterKeyPair(tenantID, deviceID, lastKnown))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}
	byDevice := instancesByDevice(entries)

	switch {
	case len(byDevice) == 0:
		// Neither the device nor the last known gateway has an instance;
		// some other permitted gateway still might.
		return r.instancesWithoutLastKnownCheck(ctx, tenantID, deviceID, viaGateways)

	case byDevice[deviceID] != "":
		return r.deviceItselfResult(tenantID, deviceID, byDevice[deviceID]), nil

	default:
		r.logger.Debug("returning adapter instance for last known gateway",
			"tenant", tenantID, "device", deviceID,
			"last_known_gateway", lastKnown, "adapter_instance", byDevice[lastKnown])
		return instancesResult(byDevice), nil
	}
}

// instancesWithoutLastKnownCheck reads the device and all via-gateways in
// one batch and applies precedence, skipping the last-known-gateway
// narrowing (the caller already knows it is unusable).
func (r *Registry) instancesWithoutLastKnownCheck(ctx context.Context, tenantID, deviceID string, viaGateways []string) (*AdapterInstances, error) {
	entries, err := r.store.GetAll(ctx, adapterKeys(tenantID, deviceID, viaGateways))
	if err != nil {
		return nil, r.lookupFailure(tenantID, deviceID, err)
	}
	byDevice := instancesByDevice(entries)

	switch {
	case len(byDevice) == 0:
		r.logger.Debug("no command handling adapter instances found",
			"tenant", tenantID, "device", deviceID)
		return nil, ErrNotFound

	case byDevice[deviceID] != "":
		return r.deviceItselfResult(tenantID, deviceID, byDevice[deviceID]), nil

	default:
		r.logger.Debug("returning all gateway adapter instances",
			"tenant", tenantID, "device", deviceID, "count", len(byDevice))
		return instancesResult(byDevice), nil
	}
}

// deviceItselfResult builds the result for a device-direct registration.
func (r *Registry) deviceItselfResult(tenantID, deviceID, instanceID string) *AdapterInstances {
	r.logger.Debug("returning command handling adapter instance for device itself",
		"tenant", tenantID, "device", deviceID, "adapter_instance", instanceID)
	return singleInstanceResult(deviceID, instanceID)
}

// lookupFailure logs and wraps a store failure during a lookup.
func (r *Registry) lookupFailure(tenantID, deviceID string, err error) error {
	r.logger.Debug("failed to read entries when getting adapter instances",
		"tenant", tenantID, "device", deviceID, "error", err)
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// record returns a closure that reports the operation's outcome to the
// telemetry recorder, if one is set. Use as:
//
//	defer r.record("operation", tenantID, time.Now())(&err)
func (r *Registry) record(operation, tenantID string, start time.Time) func(*error) {
	return func(errp *error) {
		if r.telemetry == nil {
			return
		}
		r.telemetry.RecordOperation(operation, tenantID, outcomeFor(*errp), time.Since(start))
	}
}

// outcomeFor maps an operation error to its telemetry outcome label.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}

// id pairs an identifier with its field name for validation messages.
type id struct {
	field string
	value string
}

// validateIDs rejects empty identifiers and identifiers containing the
// key separator, before any store call is made.
func validateIDs(ids ...id) error {
	for _, candidate := range ids {
		if candidate.value == "" {
			return fmt.Errorf("%w: %s id must not be empty", ErrInvalidArgument, candidate.field)
		}
		if strings.Contains(candidate.value, keySeparator) {
			return fmt.Errorf("%w: %s id must not contain %q", ErrInvalidArgument, candidate.field, keySeparator)
		}
	}
	return nil
}

// containsID reports whether ids contains target.
func containsID(ids []string, target string) bool {
	for _, candidate := range ids {
		if candidate == target {
			return true
		}
	}
	return false
}
