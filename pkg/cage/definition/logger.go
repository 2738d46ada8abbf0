// Package definition holds the small set of interfaces every other cage
// package depends on without depending on each other: currently just the
// Logger contract and its default implementation.
package definition

import "github.com/sirupsen/logrus"

// Logger is the logging contract used throughout the substrate and
// overlay. Callers can supply their own implementation in Config;
// NewDefaultLogger backs it with logrus.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

// DefaultLogger is the Logger used if the caller does not provide its
// own implementation. It wraps a logrus.Logger with a field identifying
// the peer, so every line is tagged with where it came from.
type DefaultLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger builds a DefaultLogger tagging every line with name
// (typically the peer's configured name or VAddr).
func NewDefaultLogger(name string) *DefaultLogger {
	base := logrus.New()
	base.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: base.WithField("peer", name)}
}

// ToggleDebug flips the underlying logrus level between Info and Debug.
func (l *DefaultLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return enabled
}

func (l *DefaultLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})   { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                   { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                  { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Debug(v ...interface{})                  { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{})  { l.entry.Debugf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{})                  { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{})  { l.entry.Fatalf(format, v...) }
