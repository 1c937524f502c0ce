package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeout_CompletesInTime(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})

	if err != nil {
		t.Errorf("WithTimeout() error = %v", err)
	}
}

func TestWithTimeout_PropagatesError(t *testing.T) {
	wantErr := errors.New("probe failed")
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return wantErr
	})

	if err != wantErr {
		t.Errorf("WithTimeout() error = %v, want %v", err, wantErr)
	}
}

func TestWithTimeout_Exceeded(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	if err != ErrTimeout {
		t.Errorf("WithTimeout() error = %v, want ErrTimeout", err)
	}
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return ctx.Err()
	})

	if err != context.Canceled {
		t.Errorf("WithTimeout() error = %v, want context.Canceled", err)
	}
}
