package crypto

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password bounds. bcrypt only reads the first 72 bytes, so longer inputs
// are refused rather than silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// CheckPassword enforces the password bounds.
func CheckPassword(plain string) error {
	switch {
	case len(plain) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(plain) > MaxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword checks plain against the bounds and hashes it with bcrypt.
func HashPassword(plain string) ([]byte, error) {
	if err := CheckPassword(plain); err != nil {
		return nil, err
	}
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext to hashed secret. A nil hash, as for an
// unknown username, still costs one bcrypt comparison so that login timing
// does not reveal which usernames exist.
func ComparePassword(hash []byte, plain string) error {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(plain))
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("composedeck-placeholder"), bcrypt.DefaultCost)
	})
	return placeholder
}
