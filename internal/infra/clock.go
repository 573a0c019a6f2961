package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// offsetClock は基準時計に固定のずれを加えた時刻を返す。
type offsetClock struct {
	clockwork.Clock
	offset time.Duration
}

func (c *offsetClock) Now() time.Time {
	return c.Clock.Now().Add(c.offset)
}

func (c *offsetClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *offsetClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// NewWallClock は時刻源を返す。基準時計が工場出荷時刻より前を指している場合は
// 時刻未設定とみなし、工場出荷時刻から進む時計を返す。
func NewWallClock(ctx context.Context, base clockwork.Clock, factoryUnix int64) clockwork.Clock {
	factory := time.Unix(factoryUnix, 0)
	now := base.Now()
	if factoryUnix <= 0 || !now.Before(factory) {
		return base
	}

	slog.WarnContext(ctx, "wall clock is not set, starting from factory time",
		"operation", "wall_clock",
		"factory_time", factory.UTC().Format(time.RFC3339),
	)
	return &offsetClock{Clock: base, offset: factory.Sub(now)}
}
