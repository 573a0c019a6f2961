package infra

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"smartlock-service/internal/domain"
)

const gpioWriteFlags = os.O_WRONLY | os.O_TRUNC

// GPIOActuator はsysfsのGPIO valueファイルに出力レベルを書き込む。
type GPIOActuator struct {
	fs   afero.Fs
	path string
}

// NewGPIOActuator は新しいGPIOActuatorを生成する。
func NewGPIOActuator(fsys afero.Fs, path string) *GPIOActuator {
	return &GPIOActuator{fs: fsys, path: path}
}

// Drive は開なら"1"、閉なら"0"を書き込む。
func (a *GPIOActuator) Drive(ctx context.Context, level domain.ActuatorLevel) error {
	value := "0"
	if level == domain.ActuatorOpen {
		value = "1"
	}

	f, err := a.fs.OpenFile(a.path, gpioWriteFlags, 0)
	if err != nil {
		return fmt.Errorf("opening gpio %s: %w", a.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(value); err != nil {
		return fmt.Errorf("writing gpio %s: %w", a.path, err)
	}
	slog.DebugContext(ctx, "actuator driven",
		"operation", "drive",
		"path", a.path,
		"level", level.String(),
	)
	return nil
}

// LogActuator は出力をログにだけ記録する。ハードウェアの無い環境で使う。
type LogActuator struct {
	level domain.ActuatorLevel
}

// NewLogActuator は新しいLogActuatorを生成する。
func NewLogActuator() *LogActuator {
	return &LogActuator{level: domain.ActuatorClosed}
}

// Drive はレベルを記録する。
func (a *LogActuator) Drive(ctx context.Context, level domain.ActuatorLevel) error {
	a.level = level
	slog.InfoContext(ctx, "actuator driven",
		"operation", "drive",
		"level", level.String(),
	)
	return nil
}

// Level は最後に駆動したレベルを返す。
func (a *LogActuator) Level() domain.ActuatorLevel {
	return a.level
}
