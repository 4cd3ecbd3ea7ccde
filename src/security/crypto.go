package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize        = 16
	keySize         = 32 // AES-256
	pbkdf2Iteration = 10000
)

// EncryptString seals plain under a key derived from the configured secret
// and packs salt | nonce | ciphertext into one base64 string, so the result
// can live in an ordinary text column.
func EncryptString(plain string) (string, error) {
	secret := GetConfig().FlexTokenKey
	if secret == "" {
		return "", errors.New("encryption key is not configured")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(secret, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plain), nil)

	packed := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	packed = append(packed, salt...)
	packed = append(packed, nonce...)
	packed = append(packed, sealed...)
	return base64.StdEncoding.EncodeToString(packed), nil
}

// DecryptString reverses EncryptString. It fails when the payload was not
// produced with the configured key, including any tampering with the
// ciphertext.
func DecryptString(encoded string) (string, error) {
	secret := GetConfig().FlexTokenKey
	if secret == "" {
		return "", errors.New("encryption key is not configured")
	}

	packed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode encrypted payload: %w", err)
	}
	if len(packed) < saltSize {
		return "", errors.New("encrypted payload too short")
	}

	salt, rest := packed[:saltSize], packed[saltSize:]
	gcm, err := newGCM(secret, salt)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize() {
		return "", errors.New("encrypted payload too short")
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt payload: %w", err)
	}
	return string(plain), nil
}

func newGCM(secret string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(secret), salt, pbkdf2Iteration, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
