// Package imaging prepares local image files for transmission to a vision model.
//
// The package has two halves:
//
//   - Validator checks that a path names a readable, supported, size-bounded
//     image that decodes cleanly, producing an ImageHandle.
//   - Transcoder re-validates, then decodes, downsizes and re-encodes the
//     image as JPEG, returning a self-describing data URI in a
//     TranscodeResult.
//
// # Supported Formats
//
// Input files are accepted by extension: jpg, jpeg, png, gif, bmp and webp
// (case-insensitive). Output is always JPEG ("image/jpeg"). Transparent
// pixels are composited onto white before encoding.
//
// # Resizing
//
// Images whose longest side exceeds the configured bound are scaled down
// proportionally with a Lanczos filter. Smaller images are left alone, so
// running the transcoder twice with the same bound is a no-op the second
// time.
//
// # Error Handling
//
// Validation failures are returned as *ValidationError with a Reason
// (not_found, unsupported_format, too_large, corrupt) and a short message
// suitable for showing to a caller. Failures after validation are
// *TranscodeError values naming the stage that failed.
//
// # Thread Safety
//
// Validator and Transcoder hold only configuration. Every call opens its own
// file handle and allocates its own buffers, so both are safe for concurrent
// use without locking.
package imaging
