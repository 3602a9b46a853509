package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var ErrInvalidKeypairFile = errors.New("invalid keypair file")

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "expand path")
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoadPayerKeypair reads a payer secret key written by solana-keygen (a JSON
// array of 64 bytes) or a base58 encoded secret key.
func LoadPayerKeypair(path string) (solana.PrivateKey, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "load payer keypair")
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, errors.Wrap(err, "load payer keypair")
	}

	key, err := ParsePayerKeypair(data)
	return key, errors.Wrap(err, "load payer keypair")
}

// ParsePayerKeypair accepts the solana-keygen JSON array or a base58 string.
// The key must be 64 bytes with a public half on the ed25519 curve.
func ParsePayerKeypair(data []byte) (solana.PrivateKey, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrInvalidKeypairFile
	}

	var (
		key solana.PrivateKey
		err error
	)
	if strings.HasPrefix(trimmed, "[") {
		key, err = solana.PrivateKeyFromSolanaKeygenFileBytes([]byte(trimmed))
	} else {
		key, err = solana.PrivateKeyFromBase58(trimmed)
	}
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeypairFile, err.Error())
	}

	return key, nil
}

// SavePayerKeypair writes key in the solana-keygen JSON format, a plain array
// of byte values.
func SavePayerKeypair(path string, key solana.PrivateKey) error {
	resolved, err := ExpandPath(path)
	if err != nil {
		return errors.Wrap(err, "save payer keypair")
	}

	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "save payer keypair")
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return errors.Wrap(err, "save payer keypair")
	}

	return errors.Wrap(
		os.WriteFile(resolved, data, 0o600),
		"save payer keypair",
	)
}
