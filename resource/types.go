package resource

import "github.com/wippyai/plugin-tracker/handle"

// Owners is the membership index a Table records its entries in.
// registry.Instances implements it.
type Owners interface {
	// Admit reports whether new entries may be created under inst.
	Admit(inst handle.Instance) error

	// Active reports whether inst is known and not crashed.
	Active(inst handle.Instance) bool

	// AttachResource records h as owned by inst.
	AttachResource(inst handle.Instance, h handle.Resource)

	// DetachResource removes h from the set owned by inst.
	DetachResource(inst handle.Instance, h handle.Resource)
}

// Dropper is optionally implemented by tracked objects that want to know
// when the plugin-visible entry goes away. The object itself may outlive
// the entry if other holders still reference it.
type Dropper interface {
	// LastPluginRefDropped is called once, when the entry is removed.
	// instanceDeleted is true when removal came from instance teardown
	// rather than the use count reaching zero.
	LastPluginRefDropped(instanceDeleted bool)
}
