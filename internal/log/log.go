// Package log provides the structured logger used throughout the runtime.
package log

// Modular is a log printer that allows branching into sub-scoped loggers,
// the way each pipeline, stage, and plugin instance wants its own prefix of
// fields without constructing a new logger from scratch.
type Modular interface {
	// With returns a derived logger with the given key/value pairs attached
	// to every subsequent line.
	With(keyValues ...any) Modular

	Errorf(format string, v ...any)
	Warnf(format string, v ...any)
	Infof(format string, v ...any)
	Debugf(format string, v ...any)

	Errorln(msg string)
	Warnln(msg string)
	Infoln(msg string)
	Debugln(msg string)
}
