// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"smartlock-service/internal/domain"
)

// CredentialStore は資格情報と監査ログを文字列レコードとして保存するストアのインターフェース。
type CredentialStore interface {
	GetSecret(ctx context.Context) (string, error)
	SetSecret(ctx context.Context, value string) error
	GetRecoveryCodes(ctx context.Context) (string, error)
	SetRecoveryCodes(ctx context.Context, value string) error
	AppendLog(ctx context.Context, message string) error
	ReadLogs(ctx context.Context) ([]domain.AuditLogEntry, error)
	Erase(ctx context.Context) error
}

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ProvisionResult はプロビジョニング後の資格情報。
type ProvisionResult struct {
	Secret          domain.Secret
	RecoveryCodes   domain.RecoveryCodeSet
	SecretCreated   bool
	RecoveryCreated bool
}

// CredentialService は秘密鍵とリカバリーコードの読み書きを提供する。
// kmsClientが設定されている場合、秘密鍵はKMSで暗号化して保存する。
type CredentialService struct {
	store     CredentialStore
	kmsClient KMSClient
	random    io.Reader
}

// NewCredentialService は新しいCredentialServiceを生成する。kmsClientはnilでもよい。
func NewCredentialService(store CredentialStore, kmsClient KMSClient) *CredentialService {
	return &CredentialService{
		store:     store,
		kmsClient: kmsClient,
		random:    rand.Reader,
	}
}

// Provision は未保存の秘密鍵とリカバリーコードを生成して保存する。
// 既存の値はそのまま使う。形式が不正なレコードは上書きせずエラーとして返す。
func (s *CredentialService) Provision(ctx context.Context) (*ProvisionResult, error) {
	result := &ProvisionResult{}
	var errs []error

	secret, err := s.GetSecret(ctx)
	switch {
	case err == nil:
		result.Secret = secret
	case errors.Is(err, domain.ErrCredentialNotFound):
		secret, err = domain.GenerateSecret(s.random)
		if err == nil {
			err = s.SetSecret(ctx, secret)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("provisioning secret: %w", err))
			break
		}
		result.Secret = secret
		result.SecretCreated = true
		slog.InfoContext(ctx, "secret provisioned", "operation", "provision")
	default:
		slog.ErrorContext(ctx, "stored secret is unusable",
			"operation", "provision",
			"error", err,
		)
		errs = append(errs, fmt.Errorf("reading secret: %w", err))
	}

	codes, err := s.GetRecoveryCodes(ctx)
	switch {
	case err == nil:
		result.RecoveryCodes = codes
	case errors.Is(err, domain.ErrCredentialNotFound):
		codes, err = domain.GenerateRecoveryCodeSet(s.random)
		if err == nil {
			err = s.SetRecoveryCodes(ctx, codes)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("provisioning recovery codes: %w", err))
			break
		}
		result.RecoveryCodes = codes
		result.RecoveryCreated = true
		slog.InfoContext(ctx, "recovery codes provisioned", "operation", "provision")
	default:
		slog.ErrorContext(ctx, "stored recovery codes are unusable",
			"operation", "provision",
			"error", err,
		)
		errs = append(errs, fmt.Errorf("reading recovery codes: %w", err))
	}

	return result, errors.Join(errs...)
}

// GetSecret は保存された秘密鍵を取得する。
func (s *CredentialService) GetSecret(ctx context.Context) (domain.Secret, error) {
	raw, err := s.store.GetSecret(ctx)
	if err != nil {
		return domain.Secret{}, err
	}

	if s.kmsClient != nil {
		ciphertext, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return domain.Secret{}, fmt.Errorf("%w: decoding sealed secret: %v", domain.ErrInvalidSecret, err)
		}
		plaintext, err := s.kmsClient.Decrypt(ctx, ciphertext)
		if err != nil {
			return domain.Secret{}, fmt.Errorf("decrypting secret: %w", err)
		}
		raw = string(plaintext)
	}

	return domain.ParseSecret(raw)
}

// SetSecret は秘密鍵を保存する。
func (s *CredentialService) SetSecret(ctx context.Context, secret domain.Secret) error {
	value := secret.Hex()
	if s.kmsClient != nil {
		ciphertext, err := s.kmsClient.Encrypt(ctx, []byte(value))
		if err != nil {
			return fmt.Errorf("encrypting secret: %w", err)
		}
		value = base64.StdEncoding.EncodeToString(ciphertext)
	}

	if err := s.store.SetSecret(ctx, value); err != nil {
		return fmt.Errorf("saving secret: %w", err)
	}
	return nil
}

// GetRecoveryCodes は保存されたリカバリーコードを取得する。
func (s *CredentialService) GetRecoveryCodes(ctx context.Context) (domain.RecoveryCodeSet, error) {
	blob, err := s.store.GetRecoveryCodes(ctx)
	if err != nil {
		return domain.RecoveryCodeSet{}, err
	}
	return domain.ParseRecoveryCodeSet(blob)
}

// SetRecoveryCodes はリカバリーコードを保存する。
func (s *CredentialService) SetRecoveryCodes(ctx context.Context, codes domain.RecoveryCodeSet) error {
	if err := s.store.SetRecoveryCodes(ctx, codes.Blob()); err != nil {
		return fmt.Errorf("saving recovery codes: %w", err)
	}
	return nil
}

// AppendLog は監査ログに1行追記する。失敗はログに残して返す。
func (s *CredentialService) AppendLog(ctx context.Context, message string) error {
	if err := s.store.AppendLog(ctx, message); err != nil {
		slog.ErrorContext(ctx, "failed to write audit log",
			"operation", "append_log",
			"message", message,
			"error", err,
		)
		return fmt.Errorf("appending audit log: %w", err)
	}
	return nil
}

// ReadLogs は監査ログ全体を返す。
func (s *CredentialService) ReadLogs(ctx context.Context) ([]domain.AuditLogEntry, error) {
	entries, err := s.store.ReadLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

// Erase は全ての資格情報と監査ログを削除する。次回のProvisionで再生成される。
func (s *CredentialService) Erase(ctx context.Context) error {
	if err := s.store.Erase(ctx); err != nil {
		return fmt.Errorf("erasing credentials: %w", err)
	}
	slog.WarnContext(ctx, "credentials erased", "operation", "erase")
	return nil
}
