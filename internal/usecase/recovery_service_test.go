package usecase

import (
	"context"
	"errors"
	"testing"

	"smartlock-service/internal/domain"
)

const testRecoveryBlob = "ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFGHIJ"

func newTestRecoveryService(store *memStore) *RecoveryService {
	return NewRecoveryService(NewCredentialService(store, nil))
}

func TestRecoveryService_TryConsume_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := &memStore{recovery: testRecoveryBlob}
	service := newTestRecoveryService(store)

	ok, err := service.TryConsume(ctx, "GHIJKL")
	if err != nil {
		t.Fatalf("TryConsume failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first use to succeed")
	}
	if store.recovery != "ABCDEF000000MNOPQRSTUVWXYZABCDEFGHIJ" {
		t.Errorf("slot 2 was not consumed: %q", store.recovery)
	}

	ok, err = service.TryConsume(ctx, "GHIJKL")
	if err != nil {
		t.Fatalf("TryConsume failed: %v", err)
	}
	if ok {
		t.Error("expected second use to fail")
	}
}

func TestRecoveryService_TryConsume_CaseInsensitive(t *testing.T) {
	store := &memStore{recovery: testRecoveryBlob}
	service := newTestRecoveryService(store)

	ok, err := service.TryConsume(context.Background(), "mnopqr")
	if err != nil || !ok {
		t.Fatalf("expected lowercase candidate to match, got ok=%v err=%v", ok, err)
	}
}

func TestRecoveryService_TryConsume_NoMatchNoWrite(t *testing.T) {
	store := &memStore{recovery: testRecoveryBlob, setRecoveryErr: errors.New("must not write")}
	service := newTestRecoveryService(store)

	for _, candidate := range []string{"ZZZZZZ", "000000", "abc123"} {
		ok, err := service.TryConsume(context.Background(), candidate)
		if err != nil || ok {
			t.Errorf("%s: expected no match without error, got ok=%v err=%v", candidate, ok, err)
		}
	}
	if store.recovery != testRecoveryBlob {
		t.Error("recovery codes changed without a match")
	}
}

func TestRecoveryService_TryConsume_PersistFailureDenies(t *testing.T) {
	ctx := context.Background()
	store := &memStore{recovery: testRecoveryBlob, setRecoveryErr: errors.New("disk full")}
	service := newTestRecoveryService(store)

	ok, err := service.TryConsume(ctx, "GHIJKL")
	if ok {
		t.Error("code must not be accepted when it cannot be persisted")
	}
	if !errors.Is(err, domain.ErrRecoveryNotPersisted) {
		t.Errorf("expected ErrRecoveryNotPersisted, got %v", err)
	}
	if store.recovery != testRecoveryBlob {
		t.Error("stored recovery codes must be unchanged")
	}

	// 保存できるようになれば同じコードを1回だけ使える
	store.setRecoveryErr = nil
	if ok, _ := service.TryConsume(ctx, "GHIJKL"); !ok {
		t.Error("expected code to be usable once persistence recovers")
	}
	if ok, _ := service.TryConsume(ctx, "GHIJKL"); ok {
		t.Error("expected code to be single use")
	}
}

func TestRecoveryService_TryConsume_ReadFailure(t *testing.T) {
	store := &memStore{getRecoveryErr: errors.New("i/o error")}
	service := newTestRecoveryService(store)

	ok, err := service.TryConsume(context.Background(), "GHIJKL")
	if ok || err == nil {
		t.Errorf("expected failure, got ok=%v err=%v", ok, err)
	}
	if errors.Is(err, domain.ErrRecoveryNotPersisted) {
		t.Error("read failure must not be reported as a persistence failure")
	}
}
