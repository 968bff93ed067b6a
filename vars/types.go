package vars

import "github.com/wippyai/plugin-tracker/handle"

// Owners is the membership index a Table records its entries in.
// registry.Instances implements it.
type Owners interface {
	Admit(inst handle.Instance) error
	Active(inst handle.Instance) bool
	AttachVar(inst handle.Instance, h handle.Var)
	DetachVar(inst handle.Instance, h handle.Var)
}

// Dropper is optionally implemented by var values that want to know when
// the plugin-visible entry goes away.
type Dropper interface {
	LastPluginRefDropped(instanceDeleted bool)
}

// Factory produces the value of a bridge var on a cache miss.
type Factory func() (any, error)
