package connection

import "strings"

// Key-space prefixes for the two mappings held in the shared cache.
// The prefixes keep gateway entries and adapter-instance entries in
// disjoint flat key spaces; the separator is fixed for compatibility with
// existing deployments and must never change.
const (
	// keyPrefixGateway marks entries recording the last known gateway of
	// a device.
	keyPrefixGateway = "gw"

	// keyPrefixAdapter marks entries recording the adapter instance
	// handling commands for a device or gateway.
	keyPrefixAdapter = "ai"

	// keySeparator delimits prefix, tenant and device within a key.
	// Identifiers containing the separator are rejected before any store
	// call (see validateIDs), which keeps decoding unambiguous.
	keySeparator = "@@"
)

// gatewayKey returns the cache key for a device's last known gateway.
//
// Example: gw@@tenant-1@@device-1
func gatewayKey(tenantID, deviceID string) string {
	return keyPrefixGateway + keySeparator + tenantID + keySeparator + deviceID
}

// adapterKey returns the cache key for a device's command handling
// adapter instance.
//
// Example: ai@@tenant-1@@device-1
func adapterKey(tenantID, deviceID string) string {
	return keyPrefixAdapter + keySeparator + tenantID + keySeparator + deviceID
}

// adapterKeys returns the adapter-instance keys for the device itself plus
// each gateway in gateways, without duplicates. The device's own key is
// always first.
func adapterKeys(tenantID, deviceID string, gateways []string) []string {
	keys := make([]string, 0, len(gateways)+1)
	seen := make(map[string]struct{}, len(gateways)+1)

	add := func(id string) {
		key := adapterKey(tenantID, id)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	add(deviceID)
	for _, gateway := range gateways {
		add(gateway)
	}
	return keys
}

// adapterKeyPair returns the adapter-instance keys for exactly two
// devices, typically a device and its last known gateway.
func adapterKeyPair(tenantID, deviceA, deviceB string) []string {
	return adapterKeys(tenantID, deviceA, []string{deviceB})
}

// deviceIDFromAdapterKey extracts the device id from an adapter-instance
// key: the substring after the last separator. Only keys produced by
// adapterKey within the same request are ever decoded.
func deviceIDFromAdapterKey(key string) string {
	pos := strings.LastIndex(key, keySeparator)
	return key[pos+len(keySeparator):]
}
