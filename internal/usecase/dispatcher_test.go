package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"smartlock-service/internal/domain"
	"smartlock-service/pkg/totp"

	"github.com/jonboulle/clockwork"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *memStore
	lock       *LockController
	actuator   *mockActuator
	scheduler  *fakeScheduler
	clock      *clockwork.FakeClock
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	store := &memStore{secret: testSecretHex, recovery: testRecoveryBlob}
	clock := clockwork.NewFakeClockAt(time.Unix(1648016868, 0))
	actuator := &mockActuator{}
	scheduler := &fakeScheduler{}
	lock := NewLockController(actuator, &mockIndicator{}, scheduler, DefaultRelockAfter)
	credentials := NewCredentialService(store, nil)

	return &dispatcherFixture{
		dispatcher: NewDispatcher(credentials, NewRecoveryService(credentials), lock, clock),
		store:      store,
		lock:       lock,
		actuator:   actuator,
		scheduler:  scheduler,
		clock:      clock,
	}
}

func (f *dispatcherFixture) currentCode(t *testing.T) string {
	t.Helper()

	secret, err := domain.ParseSecret(testSecretHex)
	if err != nil {
		t.Fatalf("ParseSecret failed: %v", err)
	}
	return totp.Generate(secret.Bytes(), f.clock.Now())
}

func TestDispatcher_TOTPUnlocksAndRelocks(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	code := f.currentCode(t)

	decision, err := f.dispatcher.Dispatch(ctx, []byte(code))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if decision != domain.DecisionGranted {
		t.Fatalf("want GRANTED, got %s", decision)
	}
	if !f.lock.IsUnlocked() {
		t.Fatal("expected UNLOCKED")
	}
	if !f.store.hasLog("unlocked with code " + code) {
		t.Errorf("missing success audit entry, logs=%v", f.store.logs)
	}

	f.scheduler.fireAll()
	if f.lock.IsUnlocked() {
		t.Error("expected LOCKED after relock interval")
	}
}

func TestDispatcher_TOTPPreviousWindow(t *testing.T) {
	f := newDispatcherFixture(t)
	code := f.currentCode(t)
	f.clock.Advance(totp.Period)

	decision, _ := f.dispatcher.Dispatch(context.Background(), []byte(code))
	if decision != domain.DecisionGranted {
		t.Errorf("code from the previous window should be accepted, got %s", decision)
	}
}

func TestDispatcher_TOTPExpired(t *testing.T) {
	f := newDispatcherFixture(t)
	code := f.currentCode(t)
	f.clock.Advance(3 * totp.Period)

	decision, err := f.dispatcher.Dispatch(context.Background(), []byte(code))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if decision != domain.DecisionDenied {
		t.Errorf("want DENIED, got %s", decision)
	}
	if f.lock.IsUnlocked() || len(f.actuator.levels) != 0 {
		t.Error("denied code must not actuate")
	}
	if !f.store.hasLog("invalid code " + code) {
		t.Errorf("missing failure audit entry, logs=%v", f.store.logs)
	}
}

func TestDispatcher_RecoveryCode(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)

	decision, err := f.dispatcher.Dispatch(ctx, []byte("GHIJKL"))
	if err != nil || decision != domain.DecisionGranted {
		t.Fatalf("want GRANTED, got %s err=%v", decision, err)
	}
	if f.store.recovery != "ABCDEF000000MNOPQRSTUVWXYZABCDEFGHIJ" {
		t.Errorf("slot 2 was not consumed: %q", f.store.recovery)
	}

	f.scheduler.fireAll()

	decision, _ = f.dispatcher.Dispatch(ctx, []byte("GHIJKL"))
	if decision != domain.DecisionDenied {
		t.Errorf("reused recovery code should be denied, got %s", decision)
	}
	if !f.store.hasLog("invalid code GHIJKL") {
		t.Errorf("missing failure audit entry, logs=%v", f.store.logs)
	}
}

func TestDispatcher_BinaryPayloadRoutesToTOTP(t *testing.T) {
	f := newDispatcherFixture(t)

	decision, err := f.dispatcher.Dispatch(context.Background(), []byte{0x56, 0x98, 0x61})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if f.store.secretReads != 1 || f.store.recoveryReads != 0 {
		t.Errorf("expected TOTP path, secretReads=%d recoveryReads=%d", f.store.secretReads, f.store.recoveryReads)
	}
	if decision == domain.DecisionDenied && !f.store.hasLog("invalid code 569861") {
		t.Errorf("expected normalized code in audit log, logs=%v", f.store.logs)
	}
}

func TestDispatcher_BinaryPayloadLowercaseHex(t *testing.T) {
	f := newDispatcherFixture(t)

	// 0xAB 0xCD 0xEE は英字を含むためリカバリーコードとして扱われる
	_, _ = f.dispatcher.Dispatch(context.Background(), []byte{0xab, 0xcd, 0xee})

	if f.store.recoveryReads != 1 {
		t.Error("expected recovery path for non-numeric hex")
	}
	if !f.store.hasLog("invalid code abcdee") {
		t.Errorf("expected lowercase hex in audit log, logs=%v", f.store.logs)
	}
}

func TestDispatcher_IncorrectLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 4, 5, 7, 8, 20} {
		f := newDispatcherFixture(t)

		decision, err := f.dispatcher.Dispatch(context.Background(), make([]byte, n))
		if !errors.Is(err, domain.ErrIncorrectLength) {
			t.Errorf("len %d: want ErrIncorrectLength, got %v", n, err)
		}
		if decision != domain.DecisionRejected {
			t.Errorf("len %d: want REJECTED, got %s", n, decision)
		}
		if len(f.store.logs) != 1 || f.store.logs[0] != "incorrect length" {
			t.Errorf("len %d: unexpected logs %v", n, f.store.logs)
		}
		if f.lock.IsUnlocked() || f.store.secretReads+f.store.recoveryReads != 0 {
			t.Errorf("len %d: malformed payload must not touch state", n)
		}
	}
}

func TestDispatcher_AlreadyUnlocked(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)

	if decision, _ := f.dispatcher.Dispatch(ctx, []byte("ABCDEF")); decision != domain.DecisionGranted {
		t.Fatalf("want GRANTED, got %s", decision)
	}
	drives := len(f.actuator.levels)
	scheduled := len(f.scheduler.calls)

	for _, payload := range []string{"GHIJKL", f.currentCode(t), "ZZZZZZ"} {
		decision, err := f.dispatcher.Dispatch(ctx, []byte(payload))
		if err != nil || decision != domain.DecisionAlreadyUnlocked {
			t.Errorf("%s: want ALREADY_UNLOCKED, got %s err=%v", payload, decision, err)
		}
	}

	if f.store.recovery != "000000GHIJKLMNOPQRSTUVWXYZABCDEFGHIJ" {
		t.Errorf("no slot may be consumed while unlocked: %q", f.store.recovery)
	}
	if len(f.actuator.levels) != drives || len(f.scheduler.calls) != scheduled {
		t.Error("no actuation or new relock while unlocked")
	}
	if !f.store.hasLog("already unlocked") {
		t.Errorf("missing audit entry, logs=%v", f.store.logs)
	}
}

func TestDispatcher_SecretReadFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	code := f.currentCode(t)
	f.store.getSecretErr = errors.New("i/o error")

	decision, err := f.dispatcher.Dispatch(context.Background(), []byte(code))
	if err != nil {
		t.Fatalf("read failure must not surface as an error: %v", err)
	}
	if decision != domain.DecisionDenied || f.lock.IsUnlocked() {
		t.Errorf("want DENIED and LOCKED, got %s", decision)
	}
	if !f.store.hasLog("failed to read secret") {
		t.Errorf("missing audit entry, logs=%v", f.store.logs)
	}
}

func TestDispatcher_RecoveryPersistFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.setRecoveryErr = errors.New("disk full")

	decision, _ := f.dispatcher.Dispatch(context.Background(), []byte("GHIJKL"))
	if decision != domain.DecisionDenied || f.lock.IsUnlocked() {
		t.Errorf("want DENIED and LOCKED, got %s", decision)
	}
	if !f.store.hasLog("failed to save recovery codes") {
		t.Errorf("missing audit entry, logs=%v", f.store.logs)
	}
	if f.store.recovery != testRecoveryBlob {
		t.Error("stored set must be unchanged")
	}
}

func TestDispatcher_AuditFailureDoesNotBlockUnlock(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.appendErr = errors.New("log full")

	decision, _ := f.dispatcher.Dispatch(context.Background(), []byte("MNOPQR"))
	if decision != domain.DecisionGranted || !f.lock.IsUnlocked() {
		t.Errorf("want GRANTED and UNLOCKED, got %s", decision)
	}
}

func TestDispatcher_ApplicationLogOmitsCode(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	// 時刻の数字がコードと偶然一致しないよう時刻属性は出力しない
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	f := newDispatcherFixture(t)
	code := f.currentCode(t)

	if decision, err := f.dispatcher.Dispatch(ctx, []byte(code)); err != nil || decision != domain.DecisionGranted {
		t.Fatalf("want GRANTED, got %s (err=%v)", decision, err)
	}
	f.lock.Lock(ctx)
	if decision, _ := f.dispatcher.Dispatch(ctx, []byte("QQQQQQ")); decision != domain.DecisionDenied {
		t.Fatalf("want DENIED, got %s", decision)
	}

	out := buf.String()
	if !strings.Contains(out, "code dispatched") {
		t.Fatalf("expected dispatch log lines, got %s", out)
	}
	for _, c := range []string{code, "QQQQQQ"} {
		if strings.Contains(out, c) {
			t.Errorf("application log contains submitted code %q: %s", c, out)
		}
	}
	// 監査ログには引き続き記録される
	if !f.store.hasLog("unlocked with code "+code) || !f.store.hasLog("invalid code QQQQQQ") {
		t.Errorf("audit log missing codes, logs=%v", f.store.logs)
	}
}
