package domain

import "errors"

var (
	// ErrIncorrectLength は受信ペイロードの長さが3バイトでも6バイトでもない場合のエラー。
	ErrIncorrectLength = errors.New("incorrect length")

	// ErrCredentialNotFound は秘密鍵またはリカバリーコードが保存されていない場合のエラー。
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidSecret は保存された秘密鍵の形式が不正な場合のエラー。
	ErrInvalidSecret = errors.New("invalid secret")

	// ErrInvalidRecoveryCodes は保存されたリカバリーコードの形式が不正な場合のエラー。
	ErrInvalidRecoveryCodes = errors.New("invalid recovery codes")

	// ErrRecoveryNotPersisted は使用済みにしたリカバリーコードを保存できなかった場合のエラー。
	ErrRecoveryNotPersisted = errors.New("consumed recovery code not persisted")

	// ErrStoreNotMounted はマウント前にストアを操作した場合のエラー。
	ErrStoreNotMounted = errors.New("store not mounted")

	// ErrQueueClosed は停止済みのイベントキューに投入した場合のエラー。
	ErrQueueClosed = errors.New("event queue closed")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
