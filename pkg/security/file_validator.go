package security

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxCVSize is the CV upload limit (5MB)
const DefaultMaxCVSize int64 = 5 * 1024 * 1024

// cvNamePrefix tags every stored CV file name
const cvNamePrefix = "cv"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF or DOCX files are allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
)

// Allowed CV extensions (strict whitelist)
var allowedCVExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// Allowed declared MIME types for CVs
var allowedCVMIMETypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// FileValidationResult contains the result of CV validation
type FileValidationResult struct {
	Extension   string // Lower-cased extension including the dot
	StorageName string // Generated name the content is stored under
}

// ValidateCV applies the CV upload policy:
// 1. declared MIME type and extension must both be whitelisted
// 2. size must not exceed maxSize
// On success a collision resistant storage name is generated.
func ValidateCV(filename, declaredMIME string, size, maxSize int64) (FileValidationResult, error) {
	ext := FileExtension(filename)

	if !allowedCVMIMETypes[normalizeMIME(declaredMIME)] || !allowedCVExtensions[ext] {
		return FileValidationResult{Extension: ext}, ErrUnsupportedFileType
	}

	if maxSize <= 0 {
		maxSize = DefaultMaxCVSize
	}
	if size > maxSize {
		return FileValidationResult{Extension: ext}, ErrFileTooLarge
	}

	return FileValidationResult{
		Extension:   ext,
		StorageName: GenerateStorageName(ext),
	}, nil
}

// FileExtension returns the lower-cased suffix after the last '.', dot included
func FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// GenerateStorageName builds cv-<unix millis>-<random><ext>
func GenerateStorageName(ext string) string {
	return fmt.Sprintf("%s-%d-%d%s", cvNamePrefix, time.Now().UnixMilli(), rand.Int63n(1_000_000_000), ext)
}

// normalizeMIME drops parameters such as "; charset=binary"
func normalizeMIME(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// GetAllowedExtensions returns the allowed CV extensions for error messages
func GetAllowedExtensions() []string {
	return []string{".pdf", ".docx"}
}

// FormatSize renders a byte limit exactly, in the largest unit that divides it
func FormatSize(size int64) string {
	const kb, mb = 1024, 1024 * 1024
	switch {
	case size >= mb && size%mb == 0:
		return fmt.Sprintf("%d MB", size/mb)
	case size >= kb && size%kb == 0:
		return fmt.Sprintf("%d KB", size/kb)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
