package referral

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	codePrefix   = "PEAR-"
	codeLength   = 4
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// CodesPerRedemption сколько кодов получает кошелек после активации.
	CodesPerRedemption = 3
	// DefaultInitialCodes целевое число стартовых кодов администратора.
	DefaultInitialCodes = 100
)

// NewCode генерирует код вида PEAR-XXXX.
func NewCode() (string, error) {
	var b strings.Builder
	b.Grow(len(codePrefix) + codeLength)
	b.WriteString(codePrefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode убирает пробелы и приводит код к верхнему регистру.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
