package connection

import "sort"

// LastKnownGateway is the result of a last-known-gateway lookup.
type LastKnownGateway struct {
	GatewayID string `json:"gateway-id"`
}

// AdapterInstance is one device-to-adapter-instance mapping in a lookup
// result. DeviceID is the device or gateway the instance was registered
// for, never the queried device unless it registered directly.
type AdapterInstance struct {
	DeviceID          string `json:"device-id"`
	AdapterInstanceID string `json:"adapter-instance-id"`
}

// AdapterInstances is the result of an adapter-instance lookup. The list
// holds exactly one element when the resolver could pick a single target,
// or one element per matching gateway when it could not disambiguate.
type AdapterInstances struct {
	Instances []AdapterInstance `json:"adapter-instances"`
}

// singleInstanceResult builds a one-element result.
func singleInstanceResult(deviceID, adapterInstanceID string) *AdapterInstances {
	return &AdapterInstances{
		Instances: []AdapterInstance{
			{DeviceID: deviceID, AdapterInstanceID: adapterInstanceID},
		},
	}
}

// instancesResult builds a result from a device-to-instance map. Entries
// are sorted by device id so results are deterministic.
func instancesResult(byDevice map[string]string) *AdapterInstances {
	instances := make([]AdapterInstance, 0, len(byDevice))
	for deviceID, instanceID := range byDevice {
		instances = append(instances, AdapterInstance{
			DeviceID:          deviceID,
			AdapterInstanceID: instanceID,
		})
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].DeviceID < instances[j].DeviceID
	})
	return &AdapterInstances{Instances: instances}
}

// instancesByDevice rewrites a map keyed by adapter-instance cache keys
// into one keyed by the extracted device ids.
func instancesByDevice(entries map[string]string) map[string]string {
	byDevice := make(map[string]string, len(entries))
	for key, instanceID := range entries {
		byDevice[deviceIDFromAdapterKey(key)] = instanceID
	}
	return byDevice
}
