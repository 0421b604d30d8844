package internal

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// CodeAlphabet 房間碼字元集（排除易混淆的 0/O、1/I）
//
// 長度 32 能整除 256，單一隨機位元組取模不會產生偏差。
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	minCodeLength = 4
	maxCodeLength = 6
)

// CodeGenerator 產生房間碼
type CodeGenerator struct {
	length      int
	maxAttempts int
	src         io.Reader
}

// NewCodeGenerator 創建房間碼產生器
func NewCodeGenerator(length, maxAttempts int) *CodeGenerator {
	return NewCodeGeneratorWithSource(length, maxAttempts, rand.Reader)
}

// NewCodeGeneratorWithSource 使用指定隨機來源創建產生器（測試用）
func NewCodeGeneratorWithSource(length, maxAttempts int, src io.Reader) *CodeGenerator {
	if length < minCodeLength || length > maxCodeLength {
		length = maxCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	return &CodeGenerator{
		length:      length,
		maxAttempts: maxAttempts,
		src:         src,
	}
}

// Generate 產生一個 taken 回報為未使用的房間碼
//
// 重試次數有上限，超過後回傳 ErrCodeSpaceExhausted，不會無限迴圈。
func (g *CodeGenerator) Generate(taken func(code string) bool) (string, error) {
	buf := make([]byte, g.length)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("讀取隨機數: %w", err)
		}
		for i := range buf {
			buf[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
		}
		code := string(buf)
		if !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: 嘗試 %d 次", ErrCodeSpaceExhausted, g.maxAttempts)
}

// NormalizeRoomCode 驗證並正規化客戶端指定的房間碼
//
// 接受 4-6 個英數字元，統一轉大寫。
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}
	return code, nil
}
