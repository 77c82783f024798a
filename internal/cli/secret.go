package cli

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	secretAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	minSecretLength     = 32
	DefaultSecretLength = 48
)

// GenerateSecret returns a random session secret. Lengths below the
// minimum accepted by the server config are raised to it.
func GenerateSecret(length int) (string, error) {
	if length < minSecretLength {
		length = minSecretLength
	}
	return pickFromAlphabet(length, secretAlphabet)
}

func RunGenSecretCommand(out io.Writer, length int) error {
	secret, err := GenerateSecret(length)
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	_, err = fmt.Fprintln(out, secret)
	return err
}

// pickFromAlphabet draws each character uniformly with crypto/rand.
func pickFromAlphabet(length int, alphabet string) (string, error) {
	if alphabet == "" {
		return "", fmt.Errorf("empty alphabet")
	}
	size := big.NewInt(int64(len(alphabet)))
	secret := make([]byte, length)
	for i := range secret {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		secret[i] = alphabet[n.Int64()]
	}
	return string(secret), nil
}
