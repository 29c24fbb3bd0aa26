package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Transcoding defaults.
const (
	DefaultMaxDimension     = 1024
	DefaultQuality          = 85
	DefaultThumbnailSize    = 200
	DefaultThumbnailQuality = 80

	// OutputMIMEType is the MIME type of every transcoded payload.
	OutputMIMEType = "image/jpeg"
)

// TranscodeError reports a failure after validation succeeded.
type TranscodeError struct {
	// Stage is "decode" or "encode".
	Stage string
	Path  string
	Err   error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("failed to %s image %s: %v", e.Stage, e.Path, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// TranscodeResult is the transmission-ready form of one image.
type TranscodeResult struct {
	// DataURI is "data:image/jpeg;base64,<payload>".
	DataURI string `json:"data_uri"`

	// Width and Height are the pixel dimensions of the encoded image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// EncodedSize is the JPEG payload size in bytes, before base64.
	EncodedSize int `json:"encoded_size"`

	// CompressionRatio is EncodedSize divided by the original file size,
	// or 0 when the original size is 0.
	CompressionRatio float64 `json:"compression_ratio"`

	// Original describes the source file.
	Original *ImageInfo `json:"original"`
}

// Transcoder turns validated image files into bounded JPEG data URIs.
//
// A Transcoder holds only configuration and is safe for concurrent use;
// every call allocates its own buffers.
type Transcoder struct {
	validator    *Validator
	maxDimension int
	quality      int
}

// NewTranscoder creates a Transcoder that validates with v. Non-positive
// maxDimension or quality fall back to the package defaults.
func NewTranscoder(v *Validator, maxDimension, quality int) *Transcoder {
	if v == nil {
		v = NewValidator(DefaultMaxFileSize)
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Transcoder{
		validator:    v,
		maxDimension: maxDimension,
		quality:      clampQuality(quality, DefaultQuality),
	}
}

// Process validates, resizes and re-encodes the image at path. It is
// Validate followed by Encode, so the file is decoded once.
//
// Returns:
//   - *TranscodeResult: The encoded payload and its metadata.
//   - error: A *ValidationError if the file fails validation, otherwise a
//     *TranscodeError naming the stage that failed.
func (t *Transcoder) Process(path string, maxDimension, quality int) (*TranscodeResult, error) {
	handle, err := t.validator.Validate(path)
	if err != nil {
		return nil, err
	}
	return t.Encode(handle, maxDimension, quality)
}

// Encode resizes and re-encodes a validated image.
//
// Parameters:
//   - h: A handle returned by Validator.Validate.
//   - maxDimension: Bound on the longest side. Zero uses the Transcoder's default.
//   - quality: JPEG quality 1-100. Zero uses the Transcoder's default.
//
// # Algorithm
//
//  1. Take the raster decoded during validation. A handle built by hand
//     carries none and is validated again first.
//  2. Derive ImageInfo from the decoded pixels.
//  3. If either side exceeds maxDimension, scale both sides by
//     min(maxDimension/width, maxDimension/height), rounding down, using
//     Lanczos resampling. Images are never upscaled.
//  4. Flatten any transparency onto white and encode as JPEG.
//  5. Wrap the bytes in a base64 data URI.
func (t *Transcoder) Encode(h *ImageHandle, maxDimension, quality int) (*TranscodeResult, error) {
	if h == nil {
		return nil, &TranscodeError{Stage: "decode", Err: errors.New("nil image handle")}
	}
	if maxDimension <= 0 {
		maxDimension = t.maxDimension
	}
	quality = clampQuality(quality, t.quality)

	if h.img == nil {
		checked, err := t.validator.Validate(h.Path)
		if err != nil {
			return nil, err
		}
		h = checked
	}

	img := h.img
	info := describe(h, img, h.decodedFormat)

	b := img.Bounds()
	if w, ht, scaled := FitDimensions(b.Dx(), b.Dy(), maxDimension); scaled {
		img = imaging.Resize(img, w, ht, imaging.Lanczos)
	}

	data, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, &TranscodeError{Stage: "encode", Path: h.Path, Err: err}
	}

	out := img.Bounds()
	return &TranscodeResult{
		DataURI:          EncodeDataURI(OutputMIMEType, data),
		Width:            out.Dx(),
		Height:           out.Dy(),
		EncodedSize:      len(data),
		CompressionRatio: CompressionRatio(len(data), info.Size),
		Original:         info,
	}, nil
}

// Thumbnail returns a small JPEG preview of the image at path as a data URI.
//
// The image is fitted inside width x height with its aspect ratio preserved
// and is never upscaled. Alpha and palette images are flattened onto white
// so the output is always opaque RGB. Zero sizes default to 200.
//
// Thumbnail does not run the Validator; it is meant for previews of files
// the caller already trusts. Images above DefaultMaxPixels are still refused.
func Thumbnail(path string, width, height int) (string, error) {
	if width <= 0 {
		width = DefaultThumbnailSize
	}
	if height <= 0 {
		height = DefaultThumbnailSize
	}

	img, _, err := decodeFile(path, DefaultMaxPixels)
	if err != nil {
		return "", &TranscodeError{Stage: "decode", Path: path, Err: err}
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	data, err := encodeJPEG(thumb, DefaultThumbnailQuality)
	if err != nil {
		return "", &TranscodeError{Stage: "encode", Path: path, Err: err}
	}
	return EncodeDataURI(OutputMIMEType, data), nil
}

// ComputeRatio returns min(maxDimension/width, maxDimension/height). A value
// of 1 or more means the image already fits.
func ComputeRatio(width, height, maxDimension int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	rw := float64(maxDimension) / float64(width)
	rh := float64(maxDimension) / float64(height)
	if rw < rh {
		return rw
	}
	return rh
}

// FitDimensions scales width and height down so the longest side is at most
// maxDimension. Both sides are scaled by the same ratio and rounded down,
// with a floor of 1 pixel. The bool reports whether any scaling happened.
// When scaling happens the longest side is exactly maxDimension.
func FitDimensions(width, height, maxDimension int) (int, int, bool) {
	if ComputeRatio(width, height, maxDimension) >= 1 {
		return width, height, false
	}

	longest := width
	if height > longest {
		longest = height
	}

	w := int(int64(width) * int64(maxDimension) / int64(longest))
	h := int(int64(height) * int64(maxDimension) / int64(longest))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, true
}

// CompressionRatio returns encoded/original, or 0 when original is not
// positive.
func CompressionRatio(encoded int, original int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(encoded) / float64(original)
}

// encodeJPEG flattens img and encodes it at the given quality.
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten composites img onto an opaque white background. Images that
// already report themselves as opaque are returned unchanged.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		if _, paletted := img.(*image.Paletted); !paletted {
			return img
		}
	}

	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func clampQuality(q, fallback int) int {
	if q == 0 {
		return fallback
	}
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
