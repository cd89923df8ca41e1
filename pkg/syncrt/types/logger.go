package types

// Logger is the facade the reducer, executor, and transport adapters log
// through. Shaped after the teacher's own types.Logger so call sites read
// the same way; definition.DefaultLogger backs it with logrus (§4.9).
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
}
