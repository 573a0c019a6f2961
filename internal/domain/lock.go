package domain

import "time"

// LockState は錠の状態を表す。
type LockState int

const (
	// LockStateLocked は施錠状態。起動時は常にこの状態。
	LockStateLocked LockState = iota
	// LockStateUnlocked は解錠状態。
	LockStateUnlocked
)

// String は状態名を返す。
func (s LockState) String() string {
	switch s {
	case LockStateUnlocked:
		return "UNLOCKED"
	default:
		return "LOCKED"
	}
}

// ActuatorLevel はアクチュエータ出力のレベルを表す。
type ActuatorLevel int

const (
	// ActuatorClosed は閉（施錠）レベル。
	ActuatorClosed ActuatorLevel = iota
	// ActuatorOpen は開（解錠）レベル。
	ActuatorOpen
)

// String はレベル名を返す。
func (l ActuatorLevel) String() string {
	if l == ActuatorOpen {
		return "open"
	}
	return "closed"
}

// Indicator LED の識別子。
const (
	LED1 = "led1"
	LED2 = "led2"
)

// SignalStep は確認シーケンスの1ステップ。LEDを指定の状態にしてDurationだけ待つ。
type SignalStep struct {
	LED      string
	On       bool
	Duration time.Duration
}

// SignalPattern は施錠・解錠時に再生する確認シーケンス。
type SignalPattern struct {
	Name  string
	Steps []SignalStep
}

// SignalUnlocked は解錠時のシーケンス。LED2点灯中にLED1を2回点滅させる。
var SignalUnlocked = SignalPattern{
	Name: "unlocked",
	Steps: []SignalStep{
		{LED: LED2, On: true},
		{LED: LED1, On: true, Duration: 300 * time.Millisecond},
		{LED: LED1, On: false, Duration: 150 * time.Millisecond},
		{LED: LED1, On: true, Duration: 300 * time.Millisecond},
		{LED: LED1, On: false},
		{LED: LED2, On: false},
	},
}

// SignalLocked は施錠時のシーケンス。LED1を2回点滅させる。
var SignalLocked = SignalPattern{
	Name: "locked",
	Steps: []SignalStep{
		{LED: LED1, On: true, Duration: 300 * time.Millisecond},
		{LED: LED1, On: false, Duration: 150 * time.Millisecond},
		{LED: LED1, On: true, Duration: 300 * time.Millisecond},
		{LED: LED1, On: false, Duration: 150 * time.Millisecond},
	},
}

// Decision は1回の受信に対する判定結果。
type Decision int

const (
	// DecisionRejected は不正な長さのペイロードで判定に至らなかったことを表す。
	DecisionRejected Decision = iota
	// DecisionDenied はコードが一致しなかったことを表す。
	DecisionDenied
	// DecisionGranted は解錠したことを表す。
	DecisionGranted
	// DecisionAlreadyUnlocked は解錠中のため判定しなかったことを表す。
	DecisionAlreadyUnlocked
)

// String は判定名を返す。
func (d Decision) String() string {
	switch d {
	case DecisionDenied:
		return "DENIED"
	case DecisionGranted:
		return "GRANTED"
	case DecisionAlreadyUnlocked:
		return "ALREADY_UNLOCKED"
	default:
		return "REJECTED"
	}
}
