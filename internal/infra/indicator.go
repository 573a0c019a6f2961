package infra

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"smartlock-service/internal/domain"
)

// LogIndicator は確認シーケンスの各ステップをログに出し、指定時間だけ待つ。
// キュー上で実行されるため、再生中は他のイベントを処理しない。
type LogIndicator struct {
	clock clockwork.Clock
}

// NewLogIndicator は新しいLogIndicatorを生成する。
func NewLogIndicator(clock clockwork.Clock) *LogIndicator {
	return &LogIndicator{clock: clock}
}

// Signal はパターンを再生する。
func (i *LogIndicator) Signal(ctx context.Context, pattern domain.SignalPattern) error {
	for _, step := range pattern.Steps {
		slog.DebugContext(ctx, "indicator",
			"pattern", pattern.Name,
			"led", step.LED,
			"on", step.On,
		)
		if step.Duration <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-i.clock.After(step.Duration):
		}
	}
	return nil
}
