// Package monitoring holds the diagnostic hook shared by the estimator,
// detector and event sinks.
package monitoring

import "log"

// Logf receives rare diagnostics such as filter resets and dropped samples.
// It is never called per sample on the happy path.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f and returns the logger it replaced, so callers can put
// it back. A nil f mutes diagnostics.
func SetLogger(f func(format string, v ...interface{})) (prev func(format string, v ...interface{})) {
	prev = Logf
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
	return prev
}
