package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultMaxPixels is the default ceiling on width*height of a decoded image.
const DefaultMaxPixels int64 = 2 * 89478485

// ErrTooManyPixels is wrapped by decode errors for images whose header
// declares more pixels than the ceiling allows.
var ErrTooManyPixels = errors.New("image exceeds the pixel limit")

// ImageInfo contains metadata about a validated image file.
//
// ImageInfo is computed from an ImageHandle, so it cannot exist for a file
// that failed validation. It is immutable once built.
type ImageInfo struct {
	// Filename is the base name of the file.
	Filename string `json:"filename"`

	// Format is the format reported by the decoder: "jpeg", "png", "gif",
	// "bmp" or "webp". It may differ from the extension when a file is
	// misnamed.
	Format string `json:"format"`

	// Mode describes the pixel layout using the common short names:
	//   - "RGB": opaque color (including YCbCr JPEGs)
	//   - "RGBA": color with an alpha channel
	//   - "L": 8-bit grayscale
	//   - "I;16": 16-bit grayscale
	//   - "P": palette
	//   - "CMYK": CMYK JPEG
	Mode string `json:"mode"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Size is the size of the file on disk in bytes.
	Size int64 `json:"size"`

	// HasTransparency reports an alpha channel, or a palette with at least
	// one non-opaque entry.
	HasTransparency bool `json:"has_transparency"`
}

// Inspect computes ImageInfo for a validated image.
//
// Parameters:
//   - h: A handle returned by Validator.Validate. Must not be nil.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if a handle without a raster points at a file that
//     cannot be opened or decoded.
//
// Mode and transparency come from the decoded pixels, not from header color
// models. The raster kept by Validate is reused; a handle without one is
// decoded again under DefaultMaxPixels.
func Inspect(h *ImageHandle) (*ImageInfo, error) {
	if h == nil {
		return nil, fmt.Errorf("nil image handle")
	}

	img, format := h.img, h.decodedFormat
	if img == nil {
		var err error
		if img, format, err = decodeFile(h.Path, DefaultMaxPixels); err != nil {
			return nil, err
		}
	}
	return describe(h, img, format), nil
}

// describe builds ImageInfo from an already decoded image.
func describe(h *ImageHandle, img image.Image, format string) *ImageInfo {
	mode, hasAlpha := describePixels(img)
	b := img.Bounds()

	return &ImageInfo{
		Filename:        filepath.Base(h.Path),
		Format:          format,
		Mode:            mode,
		Width:           b.Dx(),
		Height:          b.Dy(),
		Size:            h.Size,
		HasTransparency: hasAlpha,
	}
}

// describePixels maps the decoded pixel layout to a mode name and whether the
// image can carry transparency.
//
//   - *image.Paletted -> "P", transparent if any entry is not fully opaque
//   - *image.NRGBA, *image.NRGBA64, *image.NYCbCrA, *image.Alpha -> "RGBA"
//   - *image.RGBA, *image.RGBA64 -> "RGB" when opaque, "RGBA" otherwise
//   - *image.Gray -> "L", *image.Gray16 -> "I;16", *image.CMYK -> "CMYK"
//   - everything else (YCbCr JPEGs in particular) -> "RGB"
func describePixels(img image.Image) (string, bool) {
	switch m := img.(type) {
	case *image.Paletted:
		return "P", paletteHasAlpha(m.Palette)
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA, *image.Alpha, *image.Alpha16:
		return "RGBA", true
	case *image.RGBA:
		if m.Opaque() {
			return "RGB", false
		}
		return "RGBA", true
	case *image.RGBA64:
		if m.Opaque() {
			return "RGB", false
		}
		return "RGBA", true
	case *image.Gray:
		return "L", false
	case *image.Gray16:
		return "I;16", false
	case *image.CMYK:
		return "CMYK", false
	default:
		return "RGB", false
	}
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// decodeFile decodes the image at path, returning the decoder's format name.
// The header is read first and images above maxPixels are rejected before
// any pixel buffer is allocated. A non-positive maxPixels means
// DefaultMaxPixels.
func decodeFile(path string, maxPixels int64) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", fmt.Errorf("failed to rewind image: %w", err)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// checkPixels rejects dimensions whose product exceeds maxPixels.
func checkPixels(width, height int, maxPixels int64) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	n := int64(width) * int64(height)
	if n > maxPixels {
		return fmt.Errorf("%w: %dx%d is %s pixels (max %s)",
			ErrTooManyPixels, width, height, humanize.Comma(n), humanize.Comma(maxPixels))
	}
	return nil
}
