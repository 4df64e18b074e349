// Package logctx wires the structured logger shared by every package
// in this module. It plays the role the reference implementation's ad
// hoc Logf methods (Node.Logf, Slot.Logf in node.go/slot.go) play,
// backed by logrus instead of the standard log package.
package logctx

import "github.com/sirupsen/logrus"

// Logger is the minimal interface every component's Logf shim needs.
// New adapts a *logrus.Logger to it by wrapping a *logrus.Entry.
type Logger interface {
	Logf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
}

type entry struct {
	*logrus.Entry
}

func (e entry) Logf(format string, args ...interface{}) {
	e.Entry.Logf(logrus.DebugLevel, format, args...)
}

func (e entry) WithField(key string, value interface{}) Logger {
	return entry{e.Entry.WithField(key, value)}
}

// New wraps a *logrus.Logger (or nil, for the package-level default)
// into a Logger scoped to component, the way the reference's
// "node %s: "/"slot %d: " prefixes scope log lines.
func New(l *logrus.Logger, component string) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return entry{l.WithField("component", component)}
}

// Discard is a Logger that drops everything, for tests that don't
// want log noise.
var Discard Logger = discard{}

type discard struct{}

func (discard) Logf(string, ...interface{})         {}
func (discard) WithField(string, interface{}) Logger { return discard{} }
