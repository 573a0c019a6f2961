package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"smartlock-service/config"
	"smartlock-service/internal/domain"
)

func TestGPIOActuator_Drive(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	const path = "/sys/class/gpio/gpio17/value"
	if err := afero.WriteFile(fsys, path, []byte("0"), 0o644); err != nil {
		t.Fatalf("failed to create gpio file: %v", err)
	}
	actuator := NewGPIOActuator(fsys, path)

	if err := actuator.Drive(ctx, domain.ActuatorOpen); err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	if got, _ := afero.ReadFile(fsys, path); string(got) != "1" {
		t.Errorf("want 1, got %q", got)
	}

	if err := actuator.Drive(ctx, domain.ActuatorClosed); err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	if got, _ := afero.ReadFile(fsys, path); string(got) != "0" {
		t.Errorf("want 0, got %q", got)
	}
}

func TestGPIOActuator_MissingPin(t *testing.T) {
	actuator := NewGPIOActuator(afero.NewMemMapFs(), "/sys/class/gpio/gpio99/value")

	if err := actuator.Drive(context.Background(), domain.ActuatorOpen); err == nil {
		t.Error("expected error for unexported pin")
	}
}

func TestLogIndicator_Signal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	indicator := NewLogIndicator(clock)

	done := make(chan error, 1)
	go func() { done <- indicator.Signal(ctx, domain.SignalUnlocked) }()

	for _, step := range domain.SignalUnlocked.Steps {
		if step.Duration <= 0 {
			continue
		}
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("indicator did not wait: %v", err)
		}
		clock.Advance(step.Duration)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Signal failed: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Signal did not finish")
	}
}

func TestLogIndicator_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewLogIndicator(clockwork.NewFakeClock()).Signal(ctx, domain.SignalLocked); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestNewWallClock(t *testing.T) {
	ctx := context.Background()
	const factory = 1648016868

	// 時刻未設定（1970年）の場合は工場出荷時刻から進む
	unset := clockwork.NewFakeClockAt(time.Unix(100, 0))
	clock := NewWallClock(ctx, unset, factory)
	if got := clock.Now().Unix(); got != factory {
		t.Errorf("want factory time, got %d", got)
	}
	unset.Advance(10 * time.Second)
	if got := clock.Now().Unix(); got != factory+10 {
		t.Errorf("offset clock should advance, got %d", got)
	}

	set := clockwork.NewFakeClockAt(time.Unix(factory+1000, 0))
	if NewWallClock(ctx, set, factory) != clockwork.Clock(set) {
		t.Error("a set clock should be used as is")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("%q: want %v, got %v", in, want, got)
		}
	}
}

func TestTraceHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{OtelEnabled: true, GoogleCloudProject: "demo-project"}
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), cfg))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	logger.InfoContext(ctx, "code dispatched")
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	traceID := span.SpanContext().TraceID().String()
	if record["trace"] != traceID {
		t.Errorf("want trace %s, got %v", traceID, record["trace"])
	}
	if record["logging.googleapis.com/trace"] != "projects/demo-project/traces/"+traceID {
		t.Errorf("unexpected cloud logging trace %v", record["logging.googleapis.com/trace"])
	}
}

func TestNewDB_SQLite(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreDriverSQLite, DatabaseURL: ":memory:"}

	db, err := NewDB(cfg)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestNewDB_FileDriver(t *testing.T) {
	if _, err := NewDB(&config.Config{StoreDriver: config.StoreDriverFile}); err == nil {
		t.Error("expected error for file driver")
	}
}
