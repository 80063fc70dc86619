package logging

import (
	"k8s.io/klog/v2"

	"github.com/arloliu/solo/types"
)

// DebugVerbosity is the klog verbosity used for Debug messages.
const DebugVerbosity klog.Level = 4

// KlogLogger implements types.Logger on top of klog's structured API.
//
// Suits deployments that already configure klog, such as processes using the
// Kubernetes lease store. klog has no structured warning call, so Warn is
// emitted as an info line tagged severity=warning.
type KlogLogger struct{}

// Compile-time assertion that KlogLogger implements Logger.
var _ types.Logger = (*KlogLogger)(nil)

// NewKlog returns a klog-backed logger. klog flags are configured by the caller.
func NewKlog() *KlogLogger {
	return &KlogLogger{}
}

// Debug logs at klog verbosity DebugVerbosity.
func (l *KlogLogger) Debug(msg string, keysAndValues ...any) {
	klog.V(DebugVerbosity).InfoSDepth(1, msg, keysAndValues...)
}

// Info logs an info line.
func (l *KlogLogger) Info(msg string, keysAndValues ...any) {
	klog.InfoSDepth(1, msg, keysAndValues...)
}

// Warn logs an info line tagged severity=warning.
func (l *KlogLogger) Warn(msg string, keysAndValues ...any) {
	klog.InfoSDepth(1, msg, append([]any{"severity", "warning"}, keysAndValues...)...)
}

// Error logs an error line. An "error" key holding an error value is lifted
// into klog's err argument.
func (l *KlogLogger) Error(msg string, keysAndValues ...any) {
	err, rest := extractError(keysAndValues)
	klog.ErrorSDepth(1, err, msg, rest...)
}

// Fatal logs an error line, flushes and exits with status 255.
func (l *KlogLogger) Fatal(msg string, keysAndValues ...any) {
	err, rest := extractError(keysAndValues)
	klog.ErrorSDepth(1, err, msg, rest...)
	klog.FlushAndExit(klog.ExitFlushTimeout, 255)
}

// extractError pulls the first "error" key whose value is an error.
func extractError(keysAndValues []any) (error, []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || key != "error" {
			continue
		}

		err, ok := keysAndValues[i+1].(error)
		if !ok {
			continue
		}

		rest := make([]any, 0, len(keysAndValues)-2)
		rest = append(rest, keysAndValues[:i]...)
		rest = append(rest, keysAndValues[i+2:]...)

		return err, rest
	}

	return nil, keysAndValues
}
