package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// TokenAlphabet is the character set for redemption tokens.
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// VoucherTokenLength is the length of a voucher redemption token.
const VoucherTokenLength = 32

var ErrInvalidLength = errors.New("token length must be positive")

// RandomToken returns n characters drawn uniformly from TokenAlphabet
// using crypto/rand.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	max := big.NewInt(int64(len(TokenAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = TokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches the bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
