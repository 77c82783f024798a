package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minAdminPasswordLength = 8

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", minAdminPasswordLength)
	ErrPasswordMissing  = errors.New("no password given")
)

// HashAdminPassword returns a bcrypt hash suitable for
// LABNOTES_ADMIN_PASSWORD_HASH.
func HashAdminPassword(password []byte, cost int) (string, error) {
	if len(password) < minAdminPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > 72 {
		return "", errors.New("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// RunHashPasswordCommand prompts twice without echo on a terminal. Piped
// input is read as a single line.
func RunHashPasswordCommand(stdin *os.File, stdout io.Writer, stderr io.Writer) error {
	password, err := readNewPassword(stdin, stderr)
	if err != nil {
		return err
	}
	hash, err := HashAdminPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func readNewPassword(stdin *os.File, prompt io.Writer) ([]byte, error) {
	reader := bufio.NewReader(stdin)
	fmt.Fprint(prompt, "Admin password: ")
	restore, err := hideInput(stdin)
	if err != nil {
		// Not a terminal: take the first line as is.
		fmt.Fprintln(prompt)
		return readPasswordLine(reader)
	}
	defer restore()

	first, err := readPasswordLine(reader)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := readPasswordLine(reader)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(first, second) {
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

func readPasswordLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, ErrPasswordMissing
	}
	return []byte(line), nil
}
