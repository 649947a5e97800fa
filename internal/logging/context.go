package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DetachContextWithTimeout creates a context that survives cancellation of
// parent but carries its own deadline. Shutdown paths use it so a final
// snapshot flush is not cut short by the cancelled serve context.
//
//	flushCtx, cancel := logging.DetachContextWithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := store.Save(flushCtx, states)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// WithSession attaches a logger tagged with sessionID to ctx.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("session_id", sessionID).Logger()
	return l.WithContext(ctx)
}
