package volrender

import (
	"fmt"
	"time"
)

// ModeFlag is a log severity.  Messages below the current mode are dropped.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

func (m ModeFlag) String() string {
	switch m {
	case DebugMode:
		return "debug"
	case InfoMode:
		return "info"
	case WarningMode:
		return "warning"
	case ErrorMode:
		return "error"
	case CriticalMode:
		return "critical"
	case SilentMode:
		return "silent"
	default:
		return fmt.Sprintf("mode %d", uint(m))
	}
}

var (
	// Verbose turns on extra request and render detail in the logs.
	Verbose bool

	mode = InfoMode
)

// Logger receives printf-style messages, one method per severity.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown flushes and closes the log destination.
	Shutdown()
}

// SetLogMode sets the lowest severity that gets logged.  SilentMode drops everything.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// UseLogger swaps in a new package logger and returns the one it replaced.
func UseLogger(l Logger) Logger {
	prev := logger
	logger = l
	return prev
}

// logAt sends a message to the package logger if the severity is enabled.
func logAt(m ModeFlag, format string, args ...interface{}) {
	if m < mode {
		return
	}
	switch m {
	case DebugMode:
		logger.Debugf(format, args...)
	case InfoMode:
		logger.Infof(format, args...)
	case WarningMode:
		logger.Warningf(format, args...)
	case ErrorMode:
		logger.Errorf(format, args...)
	case CriticalMode:
		logger.Criticalf(format, args...)
	}
}

func Debugf(format string, args ...interface{})    { logAt(DebugMode, format, args...) }
func Infof(format string, args ...interface{})     { logAt(InfoMode, format, args...) }
func Warningf(format string, args ...interface{})  { logAt(WarningMode, format, args...) }
func Errorf(format string, args ...interface{})    { logAt(ErrorMode, format, args...) }
func Criticalf(format string, args ...interface{}) { logAt(CriticalMode, format, args...) }

// Shutdown closes the log file, if any.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog tags each message with the time since it was created, e.g.
//
//	timedLog := NewTimeLog()
//	...
//	timedLog.Infof("rendered %s", name)  // "rendered cube: 12.3ms"
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{start: time.Now()}
}

func (t TimeLog) logAt(m ModeFlag, format string, args []interface{}) {
	logAt(m, format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Debugf(format string, args ...interface{})    { t.logAt(DebugMode, format, args) }
func (t TimeLog) Infof(format string, args ...interface{})     { t.logAt(InfoMode, format, args) }
func (t TimeLog) Warningf(format string, args ...interface{})  { t.logAt(WarningMode, format, args) }
func (t TimeLog) Errorf(format string, args ...interface{})    { t.logAt(ErrorMode, format, args) }
func (t TimeLog) Criticalf(format string, args ...interface{}) { t.logAt(CriticalMode, format, args) }
