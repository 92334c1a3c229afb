package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog reports problems that happen before the zap logger exists, such
// as a missing or unreadable config file.
type EarlyLog struct {
	out io.Writer
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{out: os.Stderr}
}

func (l *EarlyLog) printf(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, level+": "+msg+"\n", args...)
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.printf("ERROR", msg, args...)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.printf("FATAL", msg, args...)
	os.Exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.printf("WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.printf("INFO", msg, args...)
}
