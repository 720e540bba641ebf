package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns an uppercase hex reference code of n random bytes.
// Registration and manual check-in use it to badge participants.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}
