// Package logcli provides colorized, human-facing logging for the cobra CLI,
// separate from the daemon's structured slog output.
package logcli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Logger is the CLI-facing logging surface. It wraps a logrus.Entry so
// command handlers can attach structured fields without depending on logrus
// directly.
type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})

	WithField(field string, value interface{}) Logger
	WithError(err error) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a prefixed, colorized CLI logger. Color is disabled automatically
// when stdout isn't a terminal (e.g. piped into a script or CI log).
func New(prefix string) Logger {
	l := logrus.New()
	l.SetFormatter(&prefixed.TextFormatter{
		ForceColors:     isatty.IsTerminal(os.Stdout.Fd()),
		DisableColors:   !isatty.IsTerminal(os.Stdout.Fd()),
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)

	entry := logrus.NewEntry(l)
	if prefix != "" {
		entry = entry.WithField("prefix", prefix)
	}
	return &logrusLogger{entry: entry}
}

func (l *logrusLogger) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(args ...interface{})                { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
func (l *logrusLogger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

func (l *logrusLogger) WithField(field string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(field, value)}
}
func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}
