package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which component reported the error
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // handle allocation
	PhaseResource Phase = "resource" // resource table
	PhaseVar      Phase = "var"      // var table
	PhaseBridge   Phase = "bridge"   // object bridge cache
	PhaseInstance Phase = "instance" // instance registry
	PhaseModule   Phase = "module"   // module registry
	PhasePlugin   Phase = "plugin"   // wasm plugin host
	PhaseScenario Phase = "scenario" // scenario scripts
	PhaseDispatch Phase = "dispatch" // serial dispatch queue
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownHandle     Kind = "unknown_handle"
	KindRefcountUnderflow Kind = "refcount_underflow"
	KindUnknownInstance   Kind = "unknown_instance"
	KindUnknownModule     Kind = "unknown_module"
	KindInstanceCrashed   Kind = "instance_crashed"
	KindHandleExhausted   Kind = "handle_exhausted"
	KindInvalidInput      Kind = "invalid_input"
	KindFactoryFailed     Kind = "factory_failed"
	KindTrap              Kind = "trap"
	KindClosed            Kind = "closed"
	KindMismatch          Kind = "mismatch"
)

// Error is the structured error type used throughout the tracker
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Handle uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %d)", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the handle the error refers to
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the tracker's error taxonomy

// UnknownHandle creates an error for a lookup against a handle that is not tracked
func UnknownHandle(phase Phase, h uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownHandle,
		Handle: h,
		Detail: "handle is not tracked",
	}
}

// RefcountUnderflow creates an error for an unref past the last reference
func RefcountUnderflow(phase Phase, h uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRefcountUnderflow,
		Handle: h,
		Detail: "released more references than were held",
	}
}

// UnknownInstance creates an error for an operation against an unregistered instance
func UnknownInstance(phase Phase, instance uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownInstance,
		Handle: instance,
		Detail: fmt.Sprintf("instance %d not found", instance),
	}
}

// UnknownModule creates an error for an operation against an unregistered module
func UnknownModule(phase Phase, module uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownModule,
		Handle: module,
		Detail: fmt.Sprintf("module %d not found", module),
	}
}

// InstanceCrashed creates an error for an operation against a crashed instance
func InstanceCrashed(phase Phase, instance uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInstanceCrashed,
		Handle: instance,
		Detail: fmt.Sprintf("instance %d has crashed", instance),
	}
}

// HandleExhausted creates the fatal error raised when a handle space wraps around
func HandleExhausted(space string) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindHandleExhausted,
		Detail: fmt.Sprintf("%s handle space exhausted", space),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// FactoryFailed wraps an error returned by a bridge var factory
func FactoryFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindFactoryFailed,
		Detail: "bridge var factory",
		Cause:  cause,
	}
}

// Trap wraps a guest trap reported by the wasm engine
func Trap(instance uint32, fn string, cause error) *Error {
	return &Error{
		Phase:  PhasePlugin,
		Kind:   KindTrap,
		Handle: instance,
		Detail: fmt.Sprintf("call %q", fn),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
