// Package photo decodes and validates captured face photos.
package photo

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
)

const (
	// DefaultMaxBytes bounds the decoded image size.
	DefaultMaxBytes = 5 << 20
	// MinDimension is the smallest accepted width or height in pixels.
	MinDimension = 16

	contentTypeJPEG = "image/jpeg"
	contentTypePNG  = "image/png"
)

// Photo is a decoded, validated capture.
type Photo struct {
	ContentType string
	Data        []byte
	Width       int
	Height      int
	SHA256      string
}

// Decoder validates encoded capture payloads.
type Decoder struct {
	MaxBytes int
}

// Decode validates payload with the default size limit.
func Decode(payload string) (Photo, error) {
	return Decoder{}.Decode(payload)
}

// Decode accepts a data:image/(jpeg|png);base64 URL or bare base64 and
// returns the decoded photo.
func (d Decoder) Decode(payload string) (Photo, error) {
	maxBytes := d.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.missing", "photo is required")
	}

	declaredType := ""
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.encoding", "photo data url is malformed")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.encoding", "photo data url must be base64")
		}
		mediaType, _, _ := strings.Cut(meta, ";")
		declaredType = strings.ToLower(strings.TrimSpace(mediaType))
		if declaredType != contentTypeJPEG && declaredType != contentTypePNG {
			return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.type", "photo must be jpeg or png")
		}
		payload = data
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.too_large", "photo is too large")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Photo{}, apperrors.Error{
			Kind:    apperrors.KindInvalidInput,
			Key:     "reverify.photo.encoding",
			Message: "photo is not valid base64",
			Cause:   err,
		}
	}
	if len(data) > maxBytes {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.too_large", "photo is too large")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, apperrors.Error{
			Kind:    apperrors.KindInvalidInput,
			Key:     "reverify.photo.invalid",
			Message: "photo could not be decoded",
			Cause:   err,
		}
	}
	contentType := "image/" + format
	if contentType != contentTypeJPEG && contentType != contentTypePNG {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.type", "photo must be jpeg or png")
	}
	if declaredType != "" && declaredType != contentType {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.type", "photo content does not match its declared type")
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		return Photo{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.too_small", "photo is too small")
	}

	sum := sha256.Sum256(data)
	return Photo{
		ContentType: contentType,
		Data:        data,
		Width:       cfg.Width,
		Height:      cfg.Height,
		SHA256:      hex.EncodeToString(sum[:]),
	}, nil
}

// DataURL encodes raw image bytes as a data URL for the given content type.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
