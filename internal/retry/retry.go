package retry

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc 根据已失败的尝试序号（从 0 开始）返回下一次重试前的等待时间
type BackoffFunc func(attempt int) time.Duration

// SleepFunc 等待 d，ctx 取消时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 有界重试策略
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc

	// OnRetry 每次失败且还会继续重试时调用，用于记录日志
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Exponential 指数退避: 2^attempt * unit
func Exponential(unit time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		return unit << uint(attempt)
	}
}

// ExhaustedError 所有尝试均失败
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do 按策略执行 fn，直到成功、尝试次数耗尽或 ctx 被取消
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Exponential(time.Second)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		// 最后一次失败后不再等待
		if attempt == maxAttempts-1 {
			break
		}

		delay := backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry interrupted: %w", err)
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
