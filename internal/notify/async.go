package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Async fires sends on background goroutines. A failed send is logged and
// never reported back to the caller.
type Async struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsync(sender Sender, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{sender: sender, timeout: timeout, logger: logger}
}

// Dispatch returns immediately. The send outlives ctx cancellation but keeps
// its values.
func (a *Async) Dispatch(ctx context.Context, kind, phone, text string) {
	base := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()

		if err := a.sender.Send(sendCtx, phone, text); err != nil {
			a.logger.Warn("notification failed", "kind", kind, "error", err)
			return
		}
		a.logger.Info("notification sent", "kind", kind)
	}()
}

// Wait blocks until in-flight sends finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
