package plugin

// MaxBufferSize is the largest buffer a guest may request (16 MB).
const MaxBufferSize = 1 << 24

// Buffer is a host-side byte buffer handed to a guest as a resource.
type Buffer struct {
	Data     []byte
	released bool
	forced   bool
}

// LastPluginRefDropped records that the guest lost access to the buffer.
func (b *Buffer) LastPluginRefDropped(instanceDeleted bool) {
	b.released = true
	b.forced = instanceDeleted
}

// Released reports whether the guest's last reference is gone, and whether
// that happened through instance teardown.
func (b *Buffer) Released() (released, forced bool) {
	return b.released, b.forced
}

// StringVar is a UTF-8 string var created from guest memory.
type StringVar struct {
	Value string
}
