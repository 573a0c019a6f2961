package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"smartlock-service/internal/domain"
)

const defaultQueueSize = 32

// EventQueue は投入された関数を単一のゴルーチンで順番に実行するキュー。
// ディスパッチと自動施錠を同じキューで実行することで、状態をロックなしで扱える。
type EventQueue struct {
	clock     clockwork.Clock
	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventQueue は新しいEventQueueを生成する。Runを呼ぶまで何も実行されない。
func NewEventQueue(clock clockwork.Clock) *EventQueue {
	return &EventQueue{
		clock:  clock,
		events: make(chan func(), defaultQueueSize),
		done:   make(chan struct{}),
	}
}

// Post は関数をキューに追加する。停止済みの場合はErrQueueClosedを返す。
func (q *EventQueue) Post(fn func()) error {
	select {
	case <-q.done:
		return domain.ErrQueueClosed
	default:
	}

	select {
	case <-q.done:
		return domain.ErrQueueClosed
	case q.events <- fn:
		return nil
	}
}

// Call は関数をキューで実行し、完了まで待つ。キュー上の関数から呼ぶとデッドロックする。
func (q *EventQueue) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := q.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return domain.ErrQueueClosed
	}
}

// CallIn はd経過後に関数をキューへ投入する。戻り値の関数で発火前なら取り消せる。
func (q *EventQueue) CallIn(d time.Duration, fn func()) func() bool {
	timer := q.clock.AfterFunc(d, func() {
		if err := q.Post(fn); err != nil {
			slog.Warn("dropped scheduled event",
				"operation", "call_in",
				"error", err,
			)
		}
	})
	return timer.Stop
}

// Run はctxが終了するかCloseされるまでキューを処理する。
func (q *EventQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case fn := <-q.events:
			q.execute(ctx, fn)
		}
	}
}

// Close はキューを停止する。複数回呼んでもよい。
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// execute は1件を最後まで実行する。panicしてもキューは止めない。
func (q *EventQueue) execute(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event handler panicked",
				"operation", "run",
				"error", fmt.Sprint(r),
			)
		}
	}()
	fn()
}
