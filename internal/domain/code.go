package domain

import (
	"encoding/hex"
	"strings"
)

const (
	// BinaryPayloadLength は16進表示される3バイトのバイナリペイロード長。
	BinaryPayloadLength = 3
	// ASCIIPayloadLength は6文字のASCIIペイロード長。
	ASCIIPayloadLength = 6
)

// SubmittedCode は1回の書き込みから得た6文字のコード。
type SubmittedCode string

// NormalizePayload は受信ペイロードを6文字のコードに正規化する。
// 3バイトは小文字16進に、6バイトはそのまま文字列にする。それ以外はErrIncorrectLength。
func NormalizePayload(payload []byte) (SubmittedCode, error) {
	switch len(payload) {
	case BinaryPayloadLength:
		return SubmittedCode(hex.EncodeToString(payload)), nil
	case ASCIIPayloadLength:
		return SubmittedCode(payload), nil
	default:
		return "", ErrIncorrectLength
	}
}

// IsNumeric は全文字が10進数字かどうかを返す。trueならTOTP、falseならリカバリーコードとして扱う。
func (c SubmittedCode) IsNumeric() bool {
	if c == "" {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < '0' || c[i] > '9' {
			return false
		}
	}
	return true
}

// Upper はリカバリーコード照合用に大文字化したコードを返す。
func (c SubmittedCode) Upper() string {
	return strings.ToUpper(string(c))
}
