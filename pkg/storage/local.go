package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage writes CVs into a directory on disk.
type LocalStorage struct {
	uploadPath string
}

func NewLocalStorage(uploadPath string) *LocalStorage {
	return &LocalStorage{uploadPath: uploadPath}
}

// EnsureDir creates the upload directory if it is missing.
func (s *LocalStorage) EnsureDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}

func (s *LocalStorage) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Names are generated server side; reject anything that could leave the directory
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid storage name: %q", name)
	}

	filePath := filepath.Join(s.uploadPath, name)

	// O_EXCL so a name collision never overwrites another candidate's CV
	dst, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filePath, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
