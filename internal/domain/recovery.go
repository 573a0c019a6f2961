package domain

import (
	"fmt"
	"io"
	"strings"
)

const (
	// RecoveryCodeCount はリカバリーコードのスロット数。
	RecoveryCodeCount = 6
	// RecoveryCodeLength は1スロットのコード長。
	RecoveryCodeLength = 6
	// RecoveryBlobLength は永続化されるリカバリーコード文字列の長さ。
	RecoveryBlobLength = RecoveryCodeCount * RecoveryCodeLength
	// ConsumedRecoveryCode は使用済みスロットを示す値。
	ConsumedRecoveryCode = "000000"
)

// RecoveryCodeSet は使い捨てリカバリーコードの固定長集合を表す。
type RecoveryCodeSet [RecoveryCodeCount]string

// ParseRecoveryCodeSet は36文字の連結文字列をスロットに分割する。
func ParseRecoveryCodeSet(blob string) (RecoveryCodeSet, error) {
	var set RecoveryCodeSet
	blob = strings.TrimSpace(blob)
	if len(blob) != RecoveryBlobLength {
		return set, fmt.Errorf("%w: want %d characters, got %d", ErrInvalidRecoveryCodes, RecoveryBlobLength, len(blob))
	}
	for i := range set {
		code := blob[i*RecoveryCodeLength : (i+1)*RecoveryCodeLength]
		if code != ConsumedRecoveryCode && !isUpperAlpha(code) {
			return RecoveryCodeSet{}, fmt.Errorf("%w: slot %d", ErrInvalidRecoveryCodes, i+1)
		}
		set[i] = code
	}
	return set, nil
}

// GenerateRecoveryCodeSet は乱数源から新しいリカバリーコードを生成する。
// 36バイトの乱数を 'A' + (b mod 26) に写像し、6文字ずつ区切る。
// 全スロットが英大文字のみのため、TOTPの数字コードと取り違えることはない。
func GenerateRecoveryCodeSet(r io.Reader) (RecoveryCodeSet, error) {
	var raw [RecoveryBlobLength]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return RecoveryCodeSet{}, fmt.Errorf("generating recovery codes: %w", err)
	}

	var letters [RecoveryBlobLength]byte
	for i, b := range raw {
		letters[i] = 'A' + b%26
	}

	var set RecoveryCodeSet
	for i := range set {
		set[i] = string(letters[i*RecoveryCodeLength : (i+1)*RecoveryCodeLength])
	}
	return set, nil
}

// Blob は永続化用の連結文字列を返す。
func (s RecoveryCodeSet) Blob() string {
	var b strings.Builder
	b.Grow(RecoveryBlobLength)
	for _, code := range s {
		b.WriteString(code)
	}
	return b.String()
}

// Consume は最初に一致した未使用スロットを使用済みにする。
// 一致したスロットの番号（0始まり）とtrueを返す。一致しなければ集合は変更しない。
func (s *RecoveryCodeSet) Consume(candidate string) (int, bool) {
	if candidate == ConsumedRecoveryCode {
		return -1, false
	}
	for i, code := range s {
		if code == ConsumedRecoveryCode {
			continue
		}
		if code == candidate {
			s[i] = ConsumedRecoveryCode
			return i, true
		}
	}
	return -1, false
}

// Remaining は未使用スロットの数を返す。
func (s RecoveryCodeSet) Remaining() int {
	n := 0
	for _, code := range s {
		if code != ConsumedRecoveryCode {
			n++
		}
	}
	return n
}

func isUpperAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
