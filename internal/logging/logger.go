// Package logging is the structured logging facade used by the csvkeeper
// server. The slog-backed implementation lives in slog.go; tests use NewNop.
package logging

import "context"

// Logger writes leveled records with alternating key/value attributes:
//
//	log.Info(ctx, "file stored", "id", id, "blob", locator)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With binds attributes to every record of the returned logger.
	With(args ...any) Logger
}
