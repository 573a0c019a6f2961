package infra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"smartlock-service/internal/domain"
	"smartlock-service/internal/usecase"
)

// startQueue はキューを起動し、テスト終了時に停止する。
func startQueue(t *testing.T, clock clockwork.Clock) *EventQueue {
	t.Helper()

	q := NewEventQueue(clock)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = q.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		q.Close()
	})
	return q
}

// waitFor は条件が満たされるまで実時間で待つ。
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEventQueue_RunsInOrder(t *testing.T) {
	q := startQueue(t, clockwork.NewFakeClock())

	var got []int
	for i := 0; i < 5; i++ {
		if err := q.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}
	// Callは先に投入された全てのイベントの後に実行される
	var snapshot []int
	if err := q.Call(context.Background(), func() { snapshot = append(snapshot, got...) }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if len(snapshot) != 5 {
		t.Fatalf("expected 5 events, got %v", snapshot)
	}
	for i, v := range snapshot {
		if v != i {
			t.Errorf("events out of order: %v", snapshot)
			break
		}
	}
}

func TestEventQueue_ClosedRejects(t *testing.T) {
	q := NewEventQueue(clockwork.NewFakeClock())
	q.Close()
	q.Close()

	if err := q.Post(func() {}); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("want ErrQueueClosed, got %v", err)
	}
	if err := q.Call(context.Background(), func() {}); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("want ErrQueueClosed, got %v", err)
	}
}

func TestEventQueue_CallContextCanceled(t *testing.T) {
	// Runしていないキューへの呼び出しはctxで打ち切られる
	q := NewEventQueue(clockwork.NewFakeClock())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want DeadlineExceeded, got %v", err)
	}
}

func TestEventQueue_SurvivesPanic(t *testing.T) {
	q := startQueue(t, clockwork.NewFakeClock())

	_ = q.Post(func() { panic("boom") })

	ran := false
	if err := q.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !ran {
		t.Error("queue stopped after panic")
	}
}

func TestEventQueue_CallIn(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := startQueue(t, clock)

	var fired atomic.Int32
	q.CallIn(time.Second, func() { fired.Add(1) })
	cancel := q.CallIn(time.Second, func() { fired.Add(10) })

	if !cancel() {
		t.Error("cancel before expiry should report true")
	}

	clock.Advance(999 * time.Millisecond)
	_ = q.Call(context.Background(), func() {})
	if fired.Load() != 0 {
		t.Fatal("fired before the deadline")
	}

	clock.Advance(time.Millisecond)
	waitFor(t, func() bool { return fired.Load() != 0 })
	if got := fired.Load(); got != 1 {
		t.Errorf("want only the uncancelled call to fire, got %d", got)
	}
}

// nopIndicator は何もしないIndicator。
type nopIndicator struct{}

func (nopIndicator) Signal(ctx context.Context, pattern domain.SignalPattern) error { return nil }

func TestEventQueue_RelocksLockController(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	q := startQueue(t, clock)
	actuator := NewLogActuator()
	lock := usecase.NewLockController(actuator, nopIndicator{}, q, usecase.DefaultRelockAfter)

	isUnlocked := func() bool {
		var unlocked bool
		if err := q.Call(ctx, func() { unlocked = lock.IsUnlocked() }); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		return unlocked
	}

	if err := q.Call(ctx, func() { lock.Unlock(ctx) }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	clock.Advance(5 * time.Second)
	// 解錠中の再解錠でタイマーが置き換わる
	if err := q.Call(ctx, func() { lock.Unlock(ctx) }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	clock.Advance(2500 * time.Millisecond)
	if !isUnlocked() {
		t.Fatal("replaced relock timer must not fire")
	}

	clock.Advance(5 * time.Second)
	waitFor(t, func() bool { return !isUnlocked() })
	if actuator.Level() != domain.ActuatorClosed {
		t.Error("actuator should be closed after relock")
	}
}
