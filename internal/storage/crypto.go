package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encrypted payload framings recognised by Decrypt.
const (
	FormatGCM = "GCM3NCR0"
	FormatCBC = "3NCR0PTD"

	pbkdf2Iterations = 100000
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
}

// IsEncrypted reports whether data starts with a known framing magic.
func IsEncrypted(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	m := string(data[:8])
	return m == FormatGCM || m == FormatCBC
}

// Encrypt frames data as magic(8) + salt(16) + nonce(12) + ciphertext+tag.
func Encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, 16)
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	out := make([]byte, 0, 8+16+12+len(data)+gcm.Overhead())
	out = append(out, FormatGCM...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt detects the framing by magic number and returns the plaintext and
// the detected format.
func Decrypt(data []byte, password string) ([]byte, string, error) {
	if len(data) < 8 {
		return nil, "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	switch string(data[:8]) {
	case FormatGCM:
		out, err := decryptGCM(data, password)
		return out, FormatGCM, err
	case FormatCBC:
		out, err := decryptCBC(data, password)
		return out, FormatCBC, err
	}
	return nil, "", fmt.Errorf("unknown encryption format")
}

func decryptGCM(data []byte, password string) ([]byte, error) {
	// magic(8) + salt(16) + nonce(12) + encrypted_data + auth_tag(16)
	if len(data) < 8+16+12+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt, nonce, body := data[8:24], data[24:36], data[36:]
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed (wrong password?): %w", err)
	}
	return plaintext, nil
}

func decryptCBC(data []byte, password string) ([]byte, error) {
	// magic(8) + hash(32) + length(8) + salt(16) + iv(16) + encrypted_data
	if len(data) < 8+32+8+16+16 {
		return nil, fmt.Errorf("CBC data too short: %d bytes", len(data))
	}
	storedHash := data[8:40]
	length := binary.BigEndian.Uint64(data[40:48])
	encrypted := data[48:]
	if uint64(len(encrypted)) != length {
		return nil, fmt.Errorf("length mismatch: expected %d, got %d", length, len(encrypted))
	}
	sum := sha256.Sum256(encrypted)
	if !bytes.Equal(storedHash, sum[:]) {
		return nil, fmt.Errorf("hash verification failed - data corrupted")
	}

	salt, iv, ciphertext := encrypted[:16], encrypted[16:32], encrypted[32:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of block size")
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := removePKCS7Padding(plaintext)
	if err != nil {
		log.Warn().Err(err).Msg("PKCS7 unpadding failed, using raw data")
		return plaintext, nil
	}
	return unpadded, nil
}

func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length: %d", n)
	}
	for i := len(data) - n; i < len(data); i++ {
		if data[i] != byte(n) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-n], nil
}
