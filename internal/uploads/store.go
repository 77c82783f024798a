package uploads

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/terraincognita07/labnotes/internal/models"
)

var (
	ErrInvalidPath      = errors.New("invalid upload path")
	ErrInvalidEntryDate = errors.New("invalid entry date")
	ErrInvalidKind      = errors.New("invalid asset kind")
	ErrMissingExtension = errors.New("upload filename has no extension")
)

// Store keeps uploaded files under root, partitioned by entry date as
// YYYY/MM/DD. Stored paths are relative to root and slash separated.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("%w: upload root is empty", ErrInvalidPath)
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Store{root: absolute}, nil
}

func (store *Store) Root() string {
	return store.root
}

// Save writes content to a fresh file in the entry's date directory and
// returns its relative path. The file is never written over an existing one.
func (store *Store) Save(entryDate string, kind models.AssetKind, originalName string, content io.Reader) (string, error) {
	parsed, _, err := models.ParseEntryDate(strings.TrimSpace(entryDate))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryDate, entryDate)
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	extension := NormalizedExtension(originalName)
	if extension == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingExtension, originalName)
	}

	directory := parsed.Format("2006/01/02")
	if err := os.MkdirAll(filepath.Join(store.root, filepath.FromSlash(directory)), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	relativePath := path.Join(directory, fmt.Sprintf("%s-%s.%s", kind.FilePrefix(), randomToken(), extension))
	absolutePath := filepath.Join(store.root, filepath.FromSlash(relativePath))

	file, err := os.OpenFile(absolutePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = os.Remove(absolutePath)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(absolutePath)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return relativePath, nil
}

// Delete removes a stored file. A missing file counts as deleted and an
// empty path is a no-op.
func (store *Store) Delete(relativePath string) error {
	if strings.TrimSpace(relativePath) == "" {
		return nil
	}
	absolutePath, err := store.Path(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(absolutePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path resolves a stored relative path to an absolute one inside root.
func (store *Store) Path(relativePath string) (string, error) {
	cleaned := path.Clean("/" + filepath.ToSlash(strings.TrimSpace(relativePath)))
	if cleaned == "/" || strings.Contains(relativePath, "\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}
	if path.Clean(filepath.ToSlash(relativePath)) != strings.TrimPrefix(cleaned, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}

	absolutePath := filepath.Join(store.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	within, err := filepath.Rel(store.root, absolutePath)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}
	return absolutePath, nil
}

// NormalizedExtension returns the lower-cased extension of name without the
// leading dot, or "" when name has none.
func NormalizedExtension(name string) string {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	extension := strings.TrimPrefix(path.Ext(base), ".")
	if extension == "" || extension == base {
		return ""
	}
	return strings.ToLower(extension)
}

func randomToken() string {
	token := uuid.New()
	return hex.EncodeToString(token[:])
}
