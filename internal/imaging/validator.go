package imaging

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultMaxFileSize is the default ceiling on image file size (10 MiB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// supportedExtensions maps accepted file extensions (without the dot) to the
// format name reported in an ImageHandle.
var supportedExtensions = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"webp": "webp",
}

// SupportedExtensions returns the accepted extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Reason classifies why an image failed validation.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonTooLarge          Reason = "too_large"
	ReasonCorrupt           Reason = "corrupt"
)

// ValidationError describes a failed image check.
type ValidationError struct {
	Reason  Reason
	Path    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err (or anything it wraps) is a
// *ValidationError, returning it if so.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ImageHandle identifies a source image that passed validation.
//
// A handle is only ever produced by Validator.Validate, so holding one means
// the file existed, had a supported extension, fit under the size ceiling,
// and decoded cleanly at the time of the check. The decoded raster is kept on
// the handle so later stages do not read the file again.
type ImageHandle struct {
	// Path is the file path as supplied by the caller.
	Path string `json:"path"`

	// Format is derived from the file extension: jpeg, png, gif, bmp or webp.
	Format string `json:"format"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	img           image.Image
	decodedFormat string
}

// Validator checks image files before any expensive processing.
//
// Checks run in a fixed order and stop at the first failure:
//
//  1. The path exists and is a regular file.
//  2. The extension is one of jpg, jpeg, png, gif, bmp, webp (any case).
//  3. The file is no larger than MaxFileSize.
//  4. The header declares no more than MaxPixels pixels.
//  5. The file decodes as an image.
//
// The cheap checks come first so unsupported or oversized files are rejected
// without being read. A Validator holds no mutable state and is safe for
// concurrent use.
type Validator struct {
	// MaxFileSize is the byte ceiling. Zero or negative means DefaultMaxFileSize.
	MaxFileSize int64

	// MaxPixels bounds width*height. Zero or negative means DefaultMaxPixels.
	MaxPixels int64
}

// NewValidator returns a Validator with the given size ceiling in bytes.
func NewValidator(maxFileSize int64) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Validator{MaxFileSize: maxFileSize}
}

func (v *Validator) maxFileSize() int64 {
	if v == nil || v.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return v.MaxFileSize
}

func (v *Validator) maxPixels() int64 {
	if v == nil || v.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return v.MaxPixels
}

// Validate runs all checks against path and returns a handle on success.
// On failure the error is always a *ValidationError.
func (v *Validator) Validate(path string) (*ImageHandle, error) {
	stat, err := os.Stat(path)
	if err != nil {
		msg := fmt.Sprintf("image file not found: %s", path)
		if !errors.Is(err, os.ErrNotExist) {
			msg = fmt.Sprintf("image file not accessible: %s", path)
		}
		return nil, &ValidationError{Reason: ReasonNotFound, Path: path, Message: msg, Err: err}
	}
	if !stat.Mode().IsRegular() {
		return nil, &ValidationError{
			Reason:  ReasonNotFound,
			Path:    path,
			Message: fmt.Sprintf("image path is not a regular file: %s", path),
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	format, ok := supportedExtensions[ext]
	if !ok {
		return nil, &ValidationError{
			Reason: ReasonUnsupportedFormat,
			Path:   path,
			Message: fmt.Sprintf("unsupported image format: %s (supported: %s)",
				path, strings.Join(SupportedExtensions(), ", ")),
		}
	}

	limit := v.maxFileSize()
	if stat.Size() > limit {
		return nil, &ValidationError{
			Reason: ReasonTooLarge,
			Path:   path,
			Message: fmt.Sprintf("image file too large: %s exceeds the limit (max %s)",
				humanize.IBytes(uint64(stat.Size())), formatMiB(limit)),
		}
	}

	img, decoded, err := decodeFile(path, v.maxPixels())
	if err != nil {
		return nil, &ValidationError{
			Reason:  ReasonCorrupt,
			Path:    path,
			Message: fmt.Sprintf("image file is corrupt: %v", err),
			Err:     err,
		}
	}

	return &ImageHandle{
		Path:          path,
		Format:        format,
		Size:          stat.Size(),
		img:           img,
		decodedFormat: decoded,
	}, nil
}

// Check is the boolean form of Validate: it reports whether path is a usable
// image along with a human-readable message.
func (v *Validator) Check(path string) (bool, string) {
	if _, err := v.Validate(path); err != nil {
		return false, err.Error()
	}
	return true, "image validation passed"
}

// formatMiB renders a byte ceiling in whole MiB when it divides evenly,
// falling back to a humanized IEC size otherwise.
func formatMiB(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMiB", n/mib)
	}
	return humanize.IBytes(uint64(n))
}
