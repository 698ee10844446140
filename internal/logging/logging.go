// Package logging wraps the standard library's log package in the
// bracketed-component-tag idiom used throughout the teacher's internal/daemon
// and internal/proxy packages (log.Printf("[Component] ...")), so call sites
// read identically whether they're logging from the daemon, the registry, or
// a module.
package logging

import (
	"log"
	"os"
)

// Logger tags every line with a fixed component name, e.g. "[Daemon]".
type Logger struct {
	component string
}

// New returns a Logger for component, e.g. New("Daemon"), New("Registry").
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf("[%s] "+format, append([]interface{}{l.component}, args...)...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	log.Printf("[%s] [WARN] "+format, append([]interface{}{l.component}, args...)...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	log.Printf("[%s] [ERROR] "+format, append([]interface{}{l.component}, args...)...)
}

// EnableDebugFileLogging redirects the standard logger to path in append
// mode, matching the teacher's setupDebugLogging (internal/daemon/daemon.go):
// if the file cannot be opened, logging silently continues on stderr.
func EnableDebugFileLogging(path string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	log.SetOutput(f)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}
