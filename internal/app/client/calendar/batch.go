package calendar

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// call - один запрос к провайдеру
type call func(ctx context.Context) error

// runBatches выполняет вызовы группами по BatchSize, группы разделены паузой.
// Вызов, упершийся в лимит, повторяется с экспоненциальной задержкой.
// Ошибки собираются в errs по индексу вызова, выполнение не прерывается.
func (b *Bridge) runBatches(ctx context.Context, calls []call) []error {
	errs := make([]error, len(calls))
	size := b.cfg.BatchSize
	if size <= 0 {
		size = len(calls)
	}

	for start := 0; start < len(calls); start += size {
		if start > 0 && b.cfg.BatchPause > 0 {
			if err := sleep(ctx, b.cfg.BatchPause); err != nil {
				for i := start; i < len(calls); i++ {
					errs[i] = err
				}
				return errs
			}
		}

		end := min(start+size, len(calls))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = b.withRetry(ctx, calls[i])
			}(i)
		}
		wg.Wait()
	}
	return errs
}

func (b *Bridge) withRetry(ctx context.Context, c call) error {
	attempts := b.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	op := func() error {
		err := c(ctx)
		if err == nil || errors.Is(err, ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b.newBackOff(), uint64(attempts-1)), ctx)
	return backoff.RetryNotify(op, bo, func(err error, d time.Duration) {
		b.log.Debug("Лимит календаря, повтор", "delay", d, "error", err)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
