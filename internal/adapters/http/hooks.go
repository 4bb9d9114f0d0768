package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/reference"
)

// hookTimeout bounds one after-create hook, such as a confirmation mail.
const hookTimeout = 30 * time.Second

// hookRunner runs after-create hooks off the request path, so a slow mail
// provider never holds a page's mutex. wait blocks until running hooks end;
// hooks arriving after that are dropped.
type hookRunner struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// background wraps fn so the controller only schedules it. The request
// context's values are kept but not its cancellation.
func background[E any](h *hookRunner, kind reference.Kind, idOf func(E) string,
	fn func(context.Context, E, dataset.Dataset) error) func(context.Context, E, dataset.Dataset) error {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, created E, related dataset.Dataset) error {
		hctx := context.WithoutCancel(ctx)
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			slog.Warn("after_create_dropped", "kind", kind, "id", idOf(created))
			return nil
		}
		h.wg.Go(func() {
			runCtx, cancel := context.WithTimeout(hctx, hookTimeout)
			defer cancel()
			if err := fn(runCtx, created, related); err != nil {
				slog.Warn("after_create_failed", "kind", kind, "id", idOf(created), "error", err)
			}
		})
		return nil
	}
}

func (h *hookRunner) wait() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.wg.Wait()
}
