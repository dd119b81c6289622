// Package monitoring holds the process-wide diagnostic logger used by every
// overdrive package.
package monitoring

import (
	"log"
	"sync/atomic"
)

// LogFunc has the signature of log.Printf.
type LogFunc func(format string, v ...interface{})

var current atomic.Pointer[LogFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes a diagnostic line through the installed logger. It defaults to
// log.Printf.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the logger. Passing nil mutes all diagnostics. It is
// safe to call while other goroutines log.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	lf := LogFunc(f)
	current.Store(&lf)
}

// Prefixed returns a logger that prepends prefix and a space to every
// format string, for components that log under their own name.
func Prefixed(prefix string) LogFunc {
	return func(format string, v ...interface{}) {
		Logf(prefix+" "+format, v...)
	}
}
