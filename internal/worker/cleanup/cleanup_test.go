package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// mockDeleter はExpiredEventDeleterのモック。
type mockDeleter struct {
	deleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
	calls             atomic.Int64
}

func (m *mockDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.calls.Add(1)
	return m.deleteExpiredFunc(ctx, now)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestJob_Run_DeletesExpiredEvents(t *testing.T) {
	deleter := &mockDeleter{
		deleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			// nowは現在時刻付近であること
			if time.Since(now) > time.Minute {
				t.Errorf("now = %v, should be close to current time", now)
			}
			return 3, nil
		},
	}

	job := NewJob(deleter, newTestLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if got := deleter.calls.Load(); got != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", got)
	}
}

// 削除対象がない場合もエラーにならないことを検証
func TestJob_Run_NoExpiredEvents(t *testing.T) {
	deleter := &mockDeleter{
		deleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, nil
		},
	}

	job := NewJob(deleter, newTestLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestJob_Run_ReturnsErrorOnDeleteFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	deleter := &mockDeleter{
		deleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, wantErr
		},
	}

	job := NewJob(deleter, newTestLogger())

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want to wrap %v", err, wantErr)
	}
}

func TestJob_Start_RunsImmediatelyThenOnInterval(t *testing.T) {
	deleter := &mockDeleter{
		deleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 1, nil
		},
	}

	job := NewJob(deleter, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		job.Start(ctx, 30*time.Millisecond)
		close(done)
	}()

	// 起動直後の1回 + ticker 2周分以上を待つ
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}

	if got := deleter.calls.Load(); got < 2 {
		t.Errorf("DeleteExpired calls = %d, want at least 2 (immediate + interval)", got)
	}
}

// 実行失敗後もジョブが停止しないことを検証
func TestJob_Start_ContinuesAfterRunFailure(t *testing.T) {
	deleter := &mockDeleter{
		deleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, errors.New("transient failure")
		},
	}

	job := NewJob(deleter, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		job.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}

	if got := deleter.calls.Load(); got < 2 {
		t.Errorf("DeleteExpired calls = %d, want at least 2 despite failures", got)
	}
}
