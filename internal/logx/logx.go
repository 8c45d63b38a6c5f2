// Package logx is a small typed logger: one formatter, a level enum, and a
// NO_COLOR respecter, grounded on the ad-hoc color helpers the teacher CLI
// keeps in util.go. Unlike the teacher, which prints straight to
// os.Stdout/os.Stderr from free functions, this package carries the level so
// EffectiveConfig.log_level can gate Debug without a second set of helpers.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level %q (want debug|info|warn|error)", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Logger struct {
	level     Level
	colorized bool
	out       io.Writer
	errOut    io.Writer
}

func New(level Level) *Logger {
	return &Logger{
		level:     level,
		colorized: colorEnabled(),
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

func colorEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("SPLUNKCTL_NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	if force := strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")); force != "" && force != "0" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (l *Logger) colorize(s string, codes ...string) string {
	if !l.colorized || s == "" {
		return s
	}
	return "\x1b[" + strings.Join(codes, ";") + "m" + s + "\x1b[0m"
}

func (l *Logger) enabled(level Level) bool { return level >= l.level }

func (l *Logger) Debugf(format string, args ...any) {
	if !l.enabled(LevelDebug) {
		return
	}
	fmt.Fprintln(l.out, l.colorize("debug:", "90")+" "+fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	if !l.enabled(LevelInfo) {
		return
	}
	fmt.Fprintln(l.out, l.colorize(fmt.Sprintf(format, args...), "36"))
}

func (l *Logger) Warnf(format string, args ...any) {
	if !l.enabled(LevelWarn) {
		return
	}
	fmt.Fprintln(l.out, l.colorize("warning:", "1", "33")+" "+fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	fmt.Fprintln(l.errOut, l.colorize("error:", "1", "31")+" "+fmt.Sprintf(format, args...))
}

func (l *Logger) Successf(format string, args ...any) {
	fmt.Fprintln(l.out, l.colorize(fmt.Sprintf(format, args...), "32"))
}
