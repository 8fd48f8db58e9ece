package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns n random bytes as upper-case hex, so the result is
// 2n characters long.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}
