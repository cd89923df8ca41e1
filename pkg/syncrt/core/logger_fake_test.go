package core

import "fmt"

// fakeLogger records formatted log lines for assertions instead of writing
// anywhere, the same role the teacher's tests play by toggling
// definition.DefaultLogger's debug flag rather than swapping implementations
// — this repo's types.Logger is an interface, so a recording fake is the
// more direct route.
type fakeLogger struct {
	lines []string
}

func (f *fakeLogger) Info(v ...interface{})  { f.lines = append(f.lines, fmt.Sprint(v...)) }
func (f *fakeLogger) Warn(v ...interface{})  { f.lines = append(f.lines, fmt.Sprint(v...)) }
func (f *fakeLogger) Error(v ...interface{}) { f.lines = append(f.lines, fmt.Sprint(v...)) }
func (f *fakeLogger) Debug(v ...interface{}) { f.lines = append(f.lines, fmt.Sprint(v...)) }

func (f *fakeLogger) Infof(format string, v ...interface{}) {
	f.lines = append(f.lines, fmt.Sprintf(format, v...))
}
func (f *fakeLogger) Warnf(format string, v ...interface{}) {
	f.lines = append(f.lines, fmt.Sprintf(format, v...))
}
func (f *fakeLogger) Errorf(format string, v ...interface{}) {
	f.lines = append(f.lines, fmt.Sprintf(format, v...))
}
func (f *fakeLogger) Debugf(format string, v ...interface{}) {
	f.lines = append(f.lines, fmt.Sprintf(format, v...))
}
