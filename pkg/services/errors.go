package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotConfigured  = errors.New("platform not configured")
	ErrSyncInProgress = errors.New("sync already in progress")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
