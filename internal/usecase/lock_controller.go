package usecase

import (
	"context"
	"log/slog"
	"time"

	"smartlock-service/internal/domain"
)

// DefaultRelockAfter は解錠から自動施錠までの時間。
const DefaultRelockAfter = 7500 * time.Millisecond

// Actuator は錠の物理出力を駆動する。
type Actuator interface {
	Drive(ctx context.Context, level domain.ActuatorLevel) error
}

// Indicator は確認シーケンス（LED点滅など）を再生する。
type Indicator interface {
	Signal(ctx context.Context, pattern domain.SignalPattern) error
}

// Scheduler は指定時間後に関数を実行する。戻り値の関数で取り消せる。
type Scheduler interface {
	CallIn(d time.Duration, fn func()) (cancel func() bool)
}

// LockController は施錠/解錠の状態遷移と自動施錠タイマーを管理する。
// 同一のイベントキュー上からのみ呼び出す前提でロックを持たない。
type LockController struct {
	actuator    Actuator
	indicator   Indicator
	scheduler   Scheduler
	relockAfter time.Duration

	state        domain.LockState
	cancelRelock func() bool
	generation   uint64
}

// NewLockController は施錠状態のLockControllerを生成する。
func NewLockController(actuator Actuator, indicator Indicator, scheduler Scheduler, relockAfter time.Duration) *LockController {
	if relockAfter <= 0 {
		relockAfter = DefaultRelockAfter
	}
	return &LockController{
		actuator:    actuator,
		indicator:   indicator,
		scheduler:   scheduler,
		relockAfter: relockAfter,
		state:       domain.LockStateLocked,
	}
}

// Unlock は解錠し、relockAfter後の自動施錠を予約する。
// 予約済みの自動施錠があれば取り消して置き換える。
func (c *LockController) Unlock(ctx context.Context) {
	c.state = domain.LockStateUnlocked
	c.drive(ctx, domain.ActuatorOpen)
	c.signal(ctx, domain.SignalUnlocked)

	c.stopRelock()
	c.generation++
	gen := c.generation
	relockCtx := context.WithoutCancel(ctx)
	c.cancelRelock = c.scheduler.CallIn(c.relockAfter, func() {
		// 取り消し後に発火済みだったタイマーは無視する
		if gen != c.generation {
			return
		}
		c.cancelRelock = nil
		c.Lock(relockCtx)
	})

	slog.InfoContext(ctx, "lock opened",
		"operation", "unlock",
		"relock_after", c.relockAfter.String(),
	)
}

// Lock は施錠する。予約済みの自動施錠は取り消す。
func (c *LockController) Lock(ctx context.Context) {
	c.stopRelock()
	c.state = domain.LockStateLocked
	c.drive(ctx, domain.ActuatorClosed)
	c.signal(ctx, domain.SignalLocked)

	slog.InfoContext(ctx, "lock closed", "operation", "lock")
}

// IsUnlocked は解錠中かどうかを返す。
func (c *LockController) IsUnlocked() bool {
	return c.state == domain.LockStateUnlocked
}

// State は現在の状態を返す。
func (c *LockController) State() domain.LockState {
	return c.state
}

// RelockPending は自動施錠が予約されているかどうかを返す。
func (c *LockController) RelockPending() bool {
	return c.cancelRelock != nil
}

func (c *LockController) stopRelock() {
	if c.cancelRelock == nil {
		return
	}
	c.cancelRelock()
	c.cancelRelock = nil
	c.generation++
}

// drive はアクチュエータを駆動する。失敗しても状態遷移は続行する。
func (c *LockController) drive(ctx context.Context, level domain.ActuatorLevel) {
	if err := c.actuator.Drive(ctx, level); err != nil {
		slog.ErrorContext(ctx, "failed to drive actuator",
			"operation", "drive",
			"level", level.String(),
			"error", err,
		)
	}
}

func (c *LockController) signal(ctx context.Context, pattern domain.SignalPattern) {
	if err := c.indicator.Signal(ctx, pattern); err != nil {
		slog.WarnContext(ctx, "failed to play signal",
			"operation", "signal",
			"pattern", pattern.Name,
			"error", err,
		)
	}
}
