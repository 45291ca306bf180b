package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	fastshot "github.com/opus-domini/fast-shot"
)

// FetchAsDataURL downloads an image and returns it inline. The content type
// is sniffed from the bytes, not trusted from the server.
func FetchAsDataURL(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: bad image url %q", ErrInvalidSource, rawURL)
	}

	client := fastshot.NewClient(u.Scheme + "://" + u.Host).
		Config().SetTimeout(timeout).
		Config().SetFollowRedirects(true).
		Build()

	resp, err := client.GET(u.RequestURI()).
		Context().Set(ctx).
		Header().Add("Accept", "image/*").
		Retry().SetExponentialBackoff(500*time.Millisecond, 3, 2.0).
		Send()
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body().Close()

	if resp.Status().IsError() {
		return "", fmt.Errorf("failed to fetch image: status %d", resp.Status().Code())
	}

	raw, err := resp.Body().AsString()
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	data := []byte(raw)
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty body from %s", ErrNotImage, u.Host)
	}

	return DetectDataURL(data)
}

// DetectDataURL sniffs data and encodes it as an image data url.
func DetectDataURL(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	mime, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return EncodeDataURL(mime, data), nil
}
