package store

import "github.com/sirupsen/logrus"

// Logger is the leveled-logging interface the publisher writes its step
// trace through, trimmed down from the teacher's dcontext.Logger to the
// handful of methods a synchronous, single-invocation CLI actually needs —
// no context.Context plumbing, since there's no request to scope it to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	WithError(err error) *logrus.Entry
}

// NewLogger returns the default logrus-backed Logger, matching the
// teacher's choice of logging library across its cmd/ binaries.
func NewLogger() Logger {
	return logrus.StandardLogger()
}
