// Package id generates and persists the opaque device identifier that keys
// every account record. There is no login concept: the identifier is derived
// once per installation and reused for the lifetime of the install.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the default length for generated identifiers
	DefaultLength = 16

	// PrefixDevice marks installation identifiers (Stripe-style prefix).
	PrefixDevice = "dev"
)

// Generate creates a random identifier with the specified length using
// Base62 encoding. The result is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// MustGenerate creates a random identifier and panics on error.
func MustGenerate(length int) string {
	id, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return id
}

// NewDeviceID creates a fresh prefixed device identifier, e.g. "dev_xK9mP2vL3nQw4RtY".
func NewDeviceID() (string, error) {
	id, err := Generate(DefaultLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", PrefixDevice, id), nil
}

// LoadOrCreate returns the device identifier stored at path, creating and
// persisting a new one when absent. The identifier is stable across process
// restarts, which is what keeps the account record addressable.
func LoadOrCreate(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id, err := NewDeviceID()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create device id directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}

	return id, nil
}
