// Package errors provides structured error types for the plugin tracker.
//
// Errors are categorized by Phase (which component reported it) and Kind
// (error category). An Error may also carry the handle it refers to and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResource, errors.KindUnknownHandle).
//		Handle(42).
//		Detail("resource released twice").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownInstance(errors.PhaseResource, 7)
//	err := errors.InstanceCrashed(errors.PhaseVar, 7)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree.
package errors
