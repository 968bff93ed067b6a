package vars

import "github.com/wippyai/plugin-tracker/handle"

// BridgeKey identifies an external object as seen from one instance.
// Object must be comparable.
type BridgeKey struct {
	Object   any
	Instance handle.Instance
}

// BridgeCache indexes bridge vars by (instance, external object).
// It holds handles only, never the vars themselves.
type BridgeCache struct {
	entries map[BridgeKey]handle.Var
}

// NewBridgeCache creates an empty cache.
func NewBridgeCache() *BridgeCache {
	return &BridgeCache{entries: make(map[BridgeKey]handle.Var)}
}

// Register maps key to h. The first registration for a key wins; later
// ones are ignored and Register returns false.
func (c *BridgeCache) Register(key BridgeKey, h handle.Var) bool {
	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = h
	return true
}

// Lookup returns the var registered for key.
func (c *BridgeCache) Lookup(key BridgeKey) (handle.Var, bool) {
	h, ok := c.entries[key]
	return h, ok
}

// Unregister removes key and reports whether it was present.
func (c *BridgeCache) Unregister(key BridgeKey) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len returns the number of registered keys.
func (c *BridgeCache) Len() int {
	return len(c.entries)
}
