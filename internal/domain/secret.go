// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// SecretSize は秘密鍵のバイト長。
	SecretSize = 10
	// SecretHexLength は永続化される秘密鍵の16進文字列長。
	SecretHexLength = SecretSize * 2
)

// Secret はTOTP計算に使う共有秘密鍵を表す。
type Secret [SecretSize]byte

// ParseSecret は20文字の16進文字列から秘密鍵を復元する。大文字・小文字は問わない。
func ParseSecret(s string) (Secret, error) {
	var secret Secret
	s = strings.TrimSpace(s)
	if len(s) != SecretHexLength {
		return secret, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidSecret, SecretHexLength, len(s))
	}
	if _, err := hex.Decode(secret[:], []byte(s)); err != nil {
		return Secret{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return secret, nil
}

// GenerateSecret は乱数源から新しい秘密鍵を生成する。
func GenerateSecret(r io.Reader) (Secret, error) {
	var secret Secret
	if _, err := io.ReadFull(r, secret[:]); err != nil {
		return Secret{}, fmt.Errorf("generating secret: %w", err)
	}
	return secret, nil
}

// Hex は永続化用の大文字16進表現を返す。
func (s Secret) Hex() string {
	return strings.ToUpper(hex.EncodeToString(s[:]))
}

// Bytes は鍵のバイト列を返す。
func (s Secret) Bytes() []byte {
	return s[:]
}

// IsZero は鍵が未設定（全ゼロ）かどうかを返す。
func (s Secret) IsZero() bool {
	return s == Secret{}
}

// String は平文を含まない表現を返す。
func (s Secret) String() string {
	return "[REDACTED]"
}

// LogValue はslog出力時に平文を伏せる。
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}
