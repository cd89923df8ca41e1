package definition

import (
	"github.com/sirupsen/logrus"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// DefaultLogger is the logger used when a caller does not supply its own.
// The teacher backs its equivalent facade with stdlib log.Logger; this
// repo promotes logrus (already pinned, if indirectly, in the teacher's own
// go.mod) to a direct dependency and backs the same facade with it instead
// (§4.9).
type DefaultLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger builds a DefaultLogger writing structured fields through
// logrus's standard logger, tagged with component="syncrt".
func NewDefaultLogger() *DefaultLogger {
	l := logrus.StandardLogger()
	return &DefaultLogger{entry: l.WithField("component", "syncrt")}
}

func (l *DefaultLogger) Info(v ...interface{})                 { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                 { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}
func (l *DefaultLogger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }

var _ types.Logger = (*DefaultLogger)(nil)
