package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrSealedElsewhere is returned when a payload fails authentication, either
// because the secret differs or because it was sealed for another project.
var ErrSealedElsewhere = errors.New("environment was not sealed for this project")

// deriveKey normalizes key material to 32 bytes using SHA-256.
func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func newAEAD(secret string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptString seals a project environment with AES-GCM. projectKey is bound
// as additional data, so the payload only opens under the same key.
// Layout: nonce || ciphertext || tag.
func EncryptString(secret, projectKey, plaintext string) ([]byte, error) {
	gcm, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), []byte(projectKey)), nil
}

// DecryptToString opens a payload produced by EncryptString for projectKey.
func DecryptToString(secret, projectKey string, payload []byte) (string, error) {
	gcm, err := newAEAD(secret)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(payload) < nonceSize+gcm.Overhead() {
		return "", io.ErrUnexpectedEOF
	}
	nonce, ciphertext := payload[:nonceSize], payload[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte(projectKey))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrSealedElsewhere, projectKey)
	}
	return string(plain), nil
}
