package tracker

import "github.com/wippyai/plugin-tracker/handle"

// EventType identifies a tracker lifecycle event.
type EventType uint8

const (
	EventResourceCreated EventType = iota
	EventResourceReleased
	EventResourceForceReleased
	EventVarCreated
	EventVarReleased
	EventVarForceReleased
	EventBridgeRegistered
	EventModuleAdded
	EventModuleRemoved
	EventInstanceAdded
	EventInstanceCrashed
	EventInstanceDeleted
)

var eventNames = [...]string{
	EventResourceCreated:       "resource-created",
	EventResourceReleased:      "resource-released",
	EventResourceForceReleased: "resource-force-released",
	EventVarCreated:            "var-created",
	EventVarReleased:           "var-released",
	EventVarForceReleased:      "var-force-released",
	EventBridgeRegistered:      "bridge-registered",
	EventModuleAdded:           "module-added",
	EventModuleRemoved:         "module-removed",
	EventInstanceAdded:         "instance-added",
	EventInstanceCrashed:       "instance-crashed",
	EventInstanceDeleted:       "instance-deleted",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event describes one lifecycle change. Only the handles relevant to Type
// are set.
type Event struct {
	Value    any
	Type     EventType
	Resource handle.Resource
	Var      handle.Var
	Module   handle.Module
	Instance handle.Instance
}

// Observer receives tracker lifecycle events. Observers run synchronously
// on the tracker's thread and must not block.
type Observer interface {
	OnTrackerEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnTrackerEvent calls f(e).
func (f ObserverFunc) OnTrackerEvent(e Event) {
	f(e)
}
