// Package xlog provides namespaced, colorized debug logging in the style of
// the Node "debug" module: each component gets a logger tagged with a
// dotted namespace, and output is gated by the DEBUG environment variable
// (a glob pattern, "*" matches everything, "sio:manager" matches one
// namespace) so production binaries stay silent by default.
package xlog

import (
	"io"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/gookit/color"
)

var (
	// Output is where every Logger writes; overridable for tests.
	Output io.Writer = os.Stderr

	debugPattern *regexp.Regexp
)

func init() {
	if pattern := os.Getenv("DEBUG"); pattern != "" {
		debugPattern = regexp.MustCompile("^" + strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(pattern)), `\*`, ".*") + "$")
	}
}

// Logger is a namespaced logger; zero value is not usable, use New.
type Logger struct {
	*log.Logger
	namespace string
}

// New creates a Logger tagged with namespace (e.g. "sio:manager").
func New(namespace string) *Logger {
	return &Logger{
		Logger:    log.New(Output, namespace+" ", 0),
		namespace: namespace,
	}
}

func (l *Logger) enabled() bool {
	return debugPattern != nil && debugPattern.MatchString(l.namespace)
}

// Debug prints a formatted, colorized message iff DEBUG matches this
// logger's namespace; otherwise it is a no-op and the message is never
// formatted (args are still evaluated by the caller).
func (l *Logger) Debug(format string, args ...any) {
	if l.enabled() {
		l.Logger.Println(color.Debug.Sprintf(format, args...))
	}
}

// Error prints a formatted, colorized error-level message unconditionally.
func (l *Logger) Error(format string, args ...any) {
	l.Logger.Println(color.Danger.Sprintf(format, args...))
}
