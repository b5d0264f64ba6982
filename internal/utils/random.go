package utils

import (
	"crypto/rand"
	"math/big"
)

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSecureToken returns an opaque token of the given length drawn from
// a 62-character alphabet using crypto/rand.
func GenerateSecureToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = tokenCharset[secureRandomInt(len(tokenCharset))]
	}
	return string(b)
}

// GenerateNumericCode returns a random string containing only digits, used
// for password-reset codes.
func GenerateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}

func secureRandomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}
	return int(n.Int64())
}
