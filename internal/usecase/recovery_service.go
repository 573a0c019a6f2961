package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smartlock-service/internal/domain"
)

// RecoveryService は使い捨てリカバリーコードの照合と消費を行う。
type RecoveryService struct {
	credentials *CredentialService
}

// NewRecoveryService は新しいRecoveryServiceを生成する。
func NewRecoveryService(credentials *CredentialService) *RecoveryService {
	return &RecoveryService{credentials: credentials}
}

// TryConsume は候補コードを照合し、一致したスロットを使用済みにして保存する。
// 毎回ストアから読み直すため、保存に失敗した場合はコードを受け付けない。
func (s *RecoveryService) TryConsume(ctx context.Context, candidate string) (bool, error) {
	codes, err := s.credentials.GetRecoveryCodes(ctx)
	if err != nil {
		return false, fmt.Errorf("reading recovery codes: %w", err)
	}

	slot, ok := codes.Consume(strings.ToUpper(candidate))
	if !ok {
		return false, nil
	}

	if err := s.credentials.SetRecoveryCodes(ctx, codes); err != nil {
		slog.ErrorContext(ctx, "failed to persist consumed recovery code",
			"operation", "try_consume",
			"slot", slot+1,
			"error", err,
		)
		return false, fmt.Errorf("%w: %w", domain.ErrRecoveryNotPersisted, err)
	}

	slog.InfoContext(ctx, "recovery code consumed",
		"operation", "try_consume",
		"slot", slot+1,
		"remaining", codes.Remaining(),
	)
	return true, nil
}
