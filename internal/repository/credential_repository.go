package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartlock-service/internal/domain"
)

// credentialsテーブルのレコード名。
const (
	CredentialSecret        = "private_key"
	CredentialRecoveryCodes = "recovery_key"
)

// CredentialModel はgorm用のモデル定義。1行1レコード。
type CredentialModel struct {
	Name      string    `gorm:"type:varchar(32);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName はテーブル名を返す。
func (CredentialModel) TableName() string {
	return "credentials"
}

// AuditLogModel は監査ログのモデル定義。
type AuditLogModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
}

// TableName はテーブル名を返す。
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// BeforeCreate はレコード作成前に時系列順のUUID（v7）を生成する。
func (m *AuditLogModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	return nil
}

// DBStore はRDBに資格情報と監査ログを保存するストア。
type DBStore struct {
	db    *gorm.DB
	clock clockwork.Clock
	loc   *time.Location
}

// NewDBStore は新しいDBStoreを生成する。
func NewDBStore(db *gorm.DB, clock clockwork.Clock, loc *time.Location) *DBStore {
	if loc == nil {
		loc = time.Local
	}
	return &DBStore{db: db, clock: clock, loc: loc}
}

// GetSecret は保存された秘密鍵文字列を返す。
func (r *DBStore) GetSecret(ctx context.Context) (string, error) {
	return r.get(ctx, CredentialSecret)
}

// SetSecret は秘密鍵文字列を保存する。
func (r *DBStore) SetSecret(ctx context.Context, value string) error {
	return r.put(ctx, CredentialSecret, value)
}

// GetRecoveryCodes は保存されたリカバリーコード文字列を返す。
func (r *DBStore) GetRecoveryCodes(ctx context.Context) (string, error) {
	return r.get(ctx, CredentialRecoveryCodes)
}

// SetRecoveryCodes はリカバリーコード文字列を保存する。
func (r *DBStore) SetRecoveryCodes(ctx context.Context, value string) error {
	return r.put(ctx, CredentialRecoveryCodes, value)
}

// AppendLog は監査ログを1件追加する。
func (r *DBStore) AppendLog(ctx context.Context, message string) error {
	model := &AuditLogModel{
		Message:   message,
		CreatedAt: r.clock.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to append audit log",
			"operation", "append_log",
			"error", err,
		)
		return err
	}
	return nil
}

// ReadLogs は監査ログ全体を古い順に返す。
func (r *DBStore) ReadLogs(ctx context.Context) ([]domain.AuditLogEntry, error) {
	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to read audit logs",
			"operation", "read_logs",
			"error", err,
		)
		return nil, err
	}

	entries := make([]domain.AuditLogEntry, len(models))
	for i, m := range models {
		entries[i] = domain.AuditLogEntry{
			Timestamp: m.CreatedAt.In(r.loc),
			Message:   m.Message,
		}
	}
	return entries, nil
}

// Erase は全レコードと監査ログを削除する。
func (r *DBStore) Erase(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&CredentialModel{}).Error; err != nil {
			slog.ErrorContext(ctx, "failed to erase credentials",
				"operation", "erase",
				"error", err,
			)
			return err
		}
		if err := global.Delete(&AuditLogModel{}).Error; err != nil {
			slog.ErrorContext(ctx, "failed to erase audit logs",
				"operation", "erase",
				"error", err,
			)
			return err
		}
		return nil
	})
}

func (r *DBStore) get(ctx context.Context, name string) (string, error) {
	var model CredentialModel
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrCredentialNotFound
		}
		slog.ErrorContext(ctx, "failed to find credential",
			"operation", "get",
			"name", name,
			"error", err,
		)
		return "", err
	}
	if model.Value == "" {
		return "", domain.ErrCredentialNotFound
	}
	return model.Value, nil
}

func (r *DBStore) put(ctx context.Context, name, value string) error {
	model := &CredentialModel{
		Name:      name,
		Value:     value,
		UpdatedAt: r.clock.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to save credential",
			"operation", "put",
			"name", name,
			"error", err,
		)
		return err
	}
	return nil
}
