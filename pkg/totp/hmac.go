// Package totp はSHA-1ブロックハッシュから組み立てたHMACとTOTPの生成・検証を提供する。
package totp

import "crypto/sha1"

const (
	// BlockSize はSHA-1のブロックサイズ（バイト）。
	BlockSize = 64
	// DigestSize はSHA-1ダイジェストの長さ（バイト）。
	DigestSize = sha1.Size

	innerPad = 0x36
	outerPad = 0x5c
)

// HMACSHA1 はkeyを鍵としてmessageのHMAC-SHA1を計算する。
// 鍵はブロックサイズまでゼロ埋めする。ブロックサイズを超える鍵は先にハッシュする（RFC 2104）。
func HMACSHA1(key, message []byte) [DigestSize]byte {
	var block [BlockSize]byte
	if len(key) > BlockSize {
		sum := sha1.Sum(key)
		copy(block[:], sum[:])
	} else {
		copy(block[:], key)
	}

	var iKey, oKey [BlockSize]byte
	for i := range block {
		iKey[i] = block[i] ^ innerPad
		oKey[i] = block[i] ^ outerPad
	}

	// H((K xor ipad) || message)
	inner := sha1.New()
	inner.Write(iKey[:])
	inner.Write(message)
	var innerSum [DigestSize]byte
	inner.Sum(innerSum[:0])

	// H((K xor opad) || H((K xor ipad) || message))
	outer := sha1.New()
	outer.Write(oKey[:])
	outer.Write(innerSum[:])
	var digest [DigestSize]byte
	outer.Sum(digest[:0])

	return digest
}
