package totp

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// Period はTOTPの時間ステップ。
	Period = 30 * time.Second
	// Digits はコードの桁数。
	Digits = 6

	modulus = 1_000_000
)

// Counter は時刻tが属する時間ステップ番号を返す（T0 = 0）。
func Counter(t time.Time) uint64 {
	unix := t.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(Period/time.Second)
}

// Truncate はHMACダイジェストに動的切り詰め（DT）を適用して31ビット値を返す。
func Truncate(digest [DigestSize]byte) uint32 {
	offset := digest[DigestSize-1] & 0x0f
	return binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff
}

// HOTP はカウンタ値に対するHOTPコードを計算する（RFC 4226）。
func HOTP(key []byte, counter uint64) uint32 {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	return Truncate(HMACSHA1(key, msg[:])) % modulus
}

// ComputeCode は時間ステップ番号に対するTOTPコードを計算する。
func ComputeCode(key []byte, counter uint64) uint32 {
	return HOTP(key, counter)
}

// Generate は時刻tのTOTPコードを6桁の文字列で返す。
func Generate(key []byte, t time.Time) string {
	return FormatCode(ComputeCode(key, Counter(t)))
}

// FormatCode はコードを先頭ゼロ埋めの6桁文字列にする。
// 認証アプリが表示する形式と一致させるため、常にゼロ埋めする。
func FormatCode(code uint32) string {
	return fmt.Sprintf("%0*d", Digits, code%modulus)
}

// ParseCode は6桁の数字文字列をコード値に変換する。
func ParseCode(candidate string) (uint32, bool) {
	if len(candidate) != Digits {
		return 0, false
	}
	var v uint32
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}

// ValidateCounter はcounterの前後skewステップ以内のいずれかのコードとcandidateが一致するか検証する。
// 比較は数値で行うため、"081804" と 81804 は一致する。
func ValidateCounter(key []byte, candidate string, counter uint64, skew uint64) bool {
	want, ok := ParseCode(candidate)
	if !ok {
		return false
	}

	start := uint64(0)
	if counter > skew {
		start = counter - skew
	}
	matched := false
	for c := start; c <= counter+skew; c++ {
		// 全ウィンドウを計算して早期リターンしない
		if ComputeCode(key, c) == want {
			matched = true
		}
	}
	return matched
}

// Validate はnowの前後1ステップ（±30秒）の許容でcandidateを検証する。
func Validate(key []byte, candidate string, now time.Time) bool {
	return ValidateCounter(key, candidate, Counter(now), 1)
}
