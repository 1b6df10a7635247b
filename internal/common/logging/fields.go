package logging

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Field is one structured key-value pair
type Field struct {
	zap zap.Field
}

// Key returns the field name
func (f Field) Key() string { return f.zap.Key }

// String creates a string field
func String(key, value string) Field { return Field{zap.String(key, value)} }

// Int creates an int field
func Int(key string, value int) Field { return Field{zap.Int(key, value)} }

// Duration creates a duration field
func Duration(key string, value time.Duration) Field { return Field{zap.Duration(key, value)} }

// Any creates a field with any value
func Any(key string, value interface{}) Field { return Field{zap.Any(key, value)} }

// Err creates an error field with key "error"
func Err(err error) Field { return Field{zap.Error(err)} }

// Component names the package emitting the entry
func Component(name string) Field { return String("component", name) }

// Endpoint names the integration endpoint involved
func Endpoint(name string) Field { return String("endpoint", name) }

// Rule names the mapping rule involved
func Rule(name string) Field { return String("rule", name) }

// Process names a supervised process
func Process(name string) Field { return String("process", name) }

// RunID tags entries of one orchestration run
func RunID(id string) Field { return String(runIDKey, id) }

// URL logs a request target without its query string, which may carry tokens
func URL(target string) Field {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i] + "?[redacted]"
	}
	return String("url", target)
}

type contextKey struct{}

const runIDKey = "run_id"

// ContextWithRunID returns a context carrying the orchestration run ID
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

// RunIDFromContext returns the run ID stored by ContextWithRunID
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
