// Package validate provides pre-flight validation of uploaded document files.
package validate

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerlens/docindex/internal/domain"
)

// MaxFileSizeBytes is the default upper bound for a single document.
const MaxFileSizeBytes = 25 << 20 // 25 MiB

// supportedTypes maps accepted MIME types to their file kind.
var supportedTypes = map[string]domain.FileKind{
	"application/pdf": domain.KindPDF,
	"image/jpeg":      domain.KindImage,
	"image/jpg":       domain.KindImage,
	"image/png":       domain.KindImage,
	"image/webp":      domain.KindImage,
	"image/heic":      domain.KindImage,
	"image/heif":      domain.KindImage,
}

// extTypes maps extensions to MIME types for formats the content sniffer
// cannot identify (HEIC/HEIF have no net/http signature) or when only a
// name is available.
var extTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// File describes an input file using metadata already available on the
// handle. No content is read during validation itself.
type File struct {
	Name      string
	SizeBytes uint64
	MIMEType  string
}

// Validator checks size and type constraints before any processing starts.
type Validator struct {
	maxSizeBytes uint64
}

// NewValidator creates a validator with the given size cap. Zero means the
// default 25 MiB cap.
func NewValidator(maxSizeBytes uint64) *Validator {
	if maxSizeBytes == 0 {
		maxSizeBytes = MaxFileSizeBytes
	}
	return &Validator{maxSizeBytes: maxSizeBytes}
}

// Validate checks the file against size and MIME constraints. It never
// returns an error; failures are reported as data in the result.
func (v *Validator) Validate(f File) domain.ValidationResult {
	res := domain.ValidationResult{
		MIMEType:  f.MIMEType,
		SizeBytes: f.SizeBytes,
	}

	if f.SizeBytes == 0 {
		res.Error = "file is empty"
		return res
	}

	if f.SizeBytes > v.maxSizeBytes {
		res.Error = fmt.Sprintf("file exceeds maximum size of %d MiB", v.maxSizeBytes>>20)
		return res
	}

	mime := strings.ToLower(strings.TrimSpace(f.MIMEType))
	if mime == "" {
		if byExt, ok := extTypes[strings.ToLower(filepath.Ext(f.Name))]; ok {
			mime = byExt
			res.MIMEType = byExt
		}
	}

	kind, ok := supportedTypes[mime]
	if !ok {
		res.Error = fmt.Sprintf("unsupported file type: %q", f.MIMEType)
		return res
	}

	res.IsValid = true
	res.Kind = kind
	return res
}

// Describe builds a File descriptor from a path, sniffing the MIME type
// from the first 512 bytes with an extension fallback.
func Describe(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f := File{
		Name:      filepath.Base(path),
		SizeBytes: uint64(info.Size()),
	}

	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open file: %w", err)
	}
	defer fh.Close()

	head := make([]byte, 512)
	n, _ := fh.Read(head)
	sniffed := http.DetectContentType(head[:n])

	if _, ok := supportedTypes[sniffed]; ok {
		f.MIMEType = sniffed
		return f, nil
	}

	if byExt, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		f.MIMEType = byExt
	} else {
		f.MIMEType = sniffed
	}
	return f, nil
}
