package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartlock-service/internal/domain"
	"smartlock-service/pkg/totp"
)

// 監査ログのメッセージ。
const (
	auditIncorrectLength     = "incorrect length"
	auditAlreadyUnlocked     = "already unlocked"
	auditUnlockedWithCode    = "unlocked with code "
	auditInvalidCode         = "invalid code "
	auditSecretReadFailed    = "failed to read secret"
	auditRecoveryReadFailed  = "failed to read recovery codes"
	auditRecoveryWriteFailed = "failed to save recovery codes"
)

// Dispatcher は受信ペイロードを判定し、成功時に解錠する。
// 1回の書き込みにつき1回呼び出され、LockControllerと同じイベントキュー上で実行する。
type Dispatcher struct {
	credentials *CredentialService
	recovery    *RecoveryService
	lock        *LockController
	clock       clockwork.Clock
	tracer      trace.Tracer
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(credentials *CredentialService, recovery *RecoveryService, lock *LockController, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{
		credentials: credentials,
		recovery:    recovery,
		lock:        lock,
		clock:       clock,
		tracer:      otel.Tracer("smartlock-service/usecase"),
	}
}

// Dispatch は1件のペイロードを処理して判定結果を返す。
// 長さ不正の場合のみErrIncorrectLengthを返し、それ以外の否認はエラーにしない。
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) (domain.Decision, error) {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.Dispatch",
		trace.WithAttributes(attribute.Int("payload.length", len(payload))),
	)
	defer span.End()

	code, err := domain.NormalizePayload(payload)
	if err != nil {
		d.audit(ctx, auditIncorrectLength)
		span.SetStatus(codes.Error, err.Error())
		d.report(ctx, span, domain.DecisionRejected, "")
		return domain.DecisionRejected, err
	}

	if d.lock.IsUnlocked() {
		d.audit(ctx, auditAlreadyUnlocked)
		d.report(ctx, span, domain.DecisionAlreadyUnlocked, "")
		return domain.DecisionAlreadyUnlocked, nil
	}

	var (
		ok   bool
		path string
	)
	if code.IsNumeric() {
		path = "totp"
		ok = d.checkTOTP(ctx, code)
	} else {
		path = "recovery"
		ok = d.checkRecovery(ctx, code)
	}

	if !ok {
		d.audit(ctx, auditInvalidCode+string(code))
		d.report(ctx, span, domain.DecisionDenied, path)
		return domain.DecisionDenied, nil
	}

	d.lock.Unlock(ctx)
	d.audit(ctx, auditUnlockedWithCode+string(code))
	d.report(ctx, span, domain.DecisionGranted, path)
	return domain.DecisionGranted, nil
}

// checkTOTP は保存された秘密鍵で時刻ベースのコードを検証する。読み出し失敗は否認とする。
func (d *Dispatcher) checkTOTP(ctx context.Context, code domain.SubmittedCode) bool {
	secret, err := d.credentials.GetSecret(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read secret",
			"operation", "dispatch",
			"error", err,
		)
		d.audit(ctx, auditSecretReadFailed)
		return false
	}
	return totp.Validate(secret.Bytes(), string(code), d.clock.Now())
}

// checkRecovery はリカバリーコードを照合して消費する。読み書きの失敗は否認とする。
func (d *Dispatcher) checkRecovery(ctx context.Context, code domain.SubmittedCode) bool {
	ok, err := d.recovery.TryConsume(ctx, code.Upper())
	if err != nil {
		slog.ErrorContext(ctx, "recovery code check failed",
			"operation", "dispatch",
			"error", err,
		)
		if errors.Is(err, domain.ErrRecoveryNotPersisted) {
			d.audit(ctx, auditRecoveryWriteFailed)
		} else {
			d.audit(ctx, auditRecoveryReadFailed)
		}
		return false
	}
	return ok
}

// audit は監査ログに追記する。失敗はCredentialService側で記録済みのため無視する。
func (d *Dispatcher) audit(ctx context.Context, message string) {
	_ = d.credentials.AppendLog(ctx, message)
}

func (d *Dispatcher) report(ctx context.Context, span trace.Span, decision domain.Decision, path string) {
	span.SetAttributes(
		attribute.String("decision", decision.String()),
		attribute.String("path", path),
	)
	slog.InfoContext(ctx, "code dispatched",
		"operation", "dispatch",
		"decision", decision.String(),
		"path", path,
		"state", d.lock.State().String(),
	)
}
