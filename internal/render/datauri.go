package render

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL is a parsed inline image payload.
type DataURL struct {
	MimeType string
	Payload  string // base64, as it appeared in the URL
}

func (d DataURL) String() string {
	return "data:" + d.MimeType + ";base64," + d.Payload
}

// Bytes decodes the payload. Padding is optional.
func (d DataURL) Bytes() ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(d.Payload, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", ErrInvalidSource, err)
	}
	return raw, nil
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ParseDataURL splits "data:<mime>;base64,<payload>".
func ParseDataURL(s string) (DataURL, error) {
	if !IsDataURL(s) {
		return DataURL{}, fmt.Errorf("%w: not a data url", ErrInvalidSource)
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || payload == "" {
		return DataURL{}, fmt.Errorf("%w: missing payload", ErrInvalidSource)
	}

	mime, params, _ := strings.Cut(header, ";")
	if mime == "" {
		return DataURL{}, fmt.Errorf("%w: missing mime type", ErrInvalidSource)
	}
	if !strings.Contains(";"+params+";", ";base64;") {
		return DataURL{}, fmt.Errorf("%w: payload must be base64 encoded", ErrInvalidSource)
	}

	return DataURL{MimeType: mime, Payload: payload}, nil
}

// EncodeDataURL builds a data url for raw bytes.
func EncodeDataURL(mime string, data []byte) string {
	return DataURL{MimeType: mime, Payload: base64.StdEncoding.EncodeToString(data)}.String()
}

// ValidateSource rejects sources that can never be submitted: empty
// strings, malformed data urls and unsupported schemes.
func ValidateSource(src string) error {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return fmt.Errorf("%w: empty source image", ErrInvalidSource)
	case IsDataURL(src):
		d, err := ParseDataURL(src)
		if err != nil {
			return err
		}
		_, err = d.Bytes()
		return err
	case IsRemoteURL(src):
		return nil
	default:
		return fmt.Errorf("%w: unsupported source scheme", ErrInvalidSource)
	}
}
