package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind 失败类别
type Kind int

const (
	KindFailed      Kind = iota // 不可重试的失败
	KindRateLimited             // 限流且重试次数用尽
	KindCanceled                // 等待退避期间 context 被取消
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Error 带类别的重试失败
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 取出错误类别，非 *Error 视为 KindFailed
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindFailed
}

// SleepFunc 退避等待函数
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 重试策略
type Policy struct {
	Attempts  int              // 总尝试次数
	Backoff   time.Duration    // 第 i 次失败后等待 Backoff*i
	Retryable func(error) bool // 仅对返回 true 的错误重试
	Sleep     SleepFunc
	OnRetry   func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy 默认策略：2 次尝试，线性退避 2s
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  2,
		Backoff:   2 * time.Second,
		Retryable: retryable,
		Sleep:     Sleep,
	}
}

// Sleep 可被 context 取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do 执行 op，限流错误按线性退避重试
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, &Error{Kind: KindFailed, Attempts: i, Err: err}
		}
		if i == attempts {
			break
		}

		wait := p.Backoff * time.Duration(i)
		if p.OnRetry != nil {
			p.OnRetry(i, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return zero, &Error{Kind: KindCanceled, Attempts: i, Err: serr}
		}
	}

	return zero, &Error{Kind: KindRateLimited, Attempts: attempts, Err: lastErr}
}

// Value 边界适配：任何失败都折叠为 (零值, false)，op 内的 panic 也会被吞掉
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, ok = zero, false
		}
	}()

	v, err := Do(ctx, p, op)
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
