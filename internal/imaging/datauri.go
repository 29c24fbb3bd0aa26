package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
)

// EncodeDataURI wraps data as "data:<mime>;base64,<payload>".
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI decodes an image from a data URI produced by EncodeDataURI.
// A bare base64 string without the "data:" header is also accepted.
//
// Returns the decoded image and its MIME type. When the input carries no
// header, the MIME type is inferred from the decoded format.
func DecodeDataURI(uri string) (image.Image, string, error) {
	mimeType, payload, err := splitDataURI(uri)
	if err != nil {
		return nil, "", err
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 payload: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	if mimeType == "" {
		mimeType = "image/" + format
	}
	return img, mimeType, nil
}

func splitDataURI(uri string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", strings.TrimSpace(uri), nil
	}

	header, body, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URI: missing ',' separator")
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if params != "base64" {
		return "", "", fmt.Errorf("unsupported data URI encoding %q", params)
	}
	return mimeType, body, nil
}
