package tracker

import "go.uber.org/zap"

// Options configures a Tracker.
type Options struct {
	// Logger overrides the package logger for this tracker.
	Logger *zap.Logger

	// Observers are subscribed before the tracker is returned.
	Observers []Observer

	// FirstHandle sets the first value issued in every handle space.
	// Zero means 1.
	FirstHandle uint32
}

// DefaultOptions returns default tracker configuration.
func DefaultOptions() Options {
	return Options{FirstHandle: 1}
}
