package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"finnguide/internal/domain"
)

// SecretPrefix marks a config value as encrypted with EncryptValue.
const SecretPrefix = "enc:"

// decryptSecrets finds "enc:..." values in provider API keys and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		if !strings.HasPrefix(p.APIKey, SecretPrefix) {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(p.APIKey, SecretPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("provider %s api_key: %w", p.Name, err)
		}
		p.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a key
// derived from passphrase. The result does not include SecretPrefix.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", domain.NewDomainError("config.EncryptValue", domain.ErrEncryption, "generate salt: "+err.Error())
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", domain.NewDomainError("config.EncryptValue", domain.ErrEncryption, err.Error())
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", domain.NewDomainError("config.EncryptValue", domain.ErrEncryption, "generate nonce: "+err.Error())
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	const op = "config.DecryptValue"

	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", domain.NewDomainError(op, domain.ErrDecryption, "invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrDecryption, "decode salt")
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrDecryption, "decode ciphertext")
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrDecryption, err.Error())
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", domain.NewDomainError(op, domain.ErrDecryption, "ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrDecryption, "wrong passphrase or corrupted value")
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}
