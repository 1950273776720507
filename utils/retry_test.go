package utils

import (
	"context"
	"testing"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
)

func fastOpt() RetryOpt {
	return RetryOpt{MaxAttempts: 3, BaseWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
}

func TestRetryTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "t", fastOpt(), func() *errs.Error {
		calls++
		if calls < 3 {
			return errs.NewMsg(core.ErrNetTimeout, "timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("want success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("want 3 calls, got %d", calls)
	}
}

func TestRetryPermanentStops(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "t", fastOpt(), func() *errs.Error {
		calls++
		return errs.NewMsg(core.ErrBadSourceResp, "bad payload")
	})
	if err == nil || err.Code != core.ErrBadSourceResp {
		t.Fatalf("want permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error should not retry, got %d calls", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "t", fastOpt(), func() *errs.Error {
		calls++
		return errs.NewMsg(core.ErrRateLimit, "429")
	})
	if err == nil || err.Code != core.ErrRateLimit {
		t.Fatalf("want last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("want 3 calls, got %d", calls)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "t", RetryOpt{MaxAttempts: 3, BaseWait: time.Hour}, func() *errs.Error {
		return errs.NewMsg(core.ErrNetTimeout, "timeout")
	})
	if err == nil || err.Code != core.ErrCancelled {
		t.Fatalf("want cancelled, got %v", err)
	}
}
