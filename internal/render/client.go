package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/rs/zerolog"

	"github.com/roomi-app/roomi-backend/internal/logging"
)

const generatePath = "/v1/txt2img"

// Result is what a generation produces. RenderedImage is empty when the
// service answered without an image.
type Result struct {
	RenderedImage string `json:"rendered_image"`
}

type Options struct {
	BaseURL  string
	APIKey   string
	Provider string
	Model    string
	Timeout  time.Duration
}

// Client talks to the image-generation service.
type Client struct {
	http    fastshot.ClientHttpMethods
	opts    Options
	log     zerolog.Logger
	prompt  string
	fetchTO time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}

	b := fastshot.NewClient(strings.TrimRight(opts.BaseURL, "/"))
	if opts.APIKey != "" {
		b.Auth().BearerToken(opts.APIKey)
	}
	httpClient := b.Config().SetTimeout(opts.Timeout).
		Config().SetFollowRedirects(true).
		Header().Add("Content-Type", "application/json").
		Build()

	return &Client{
		http:    httpClient,
		opts:    opts,
		log:     logging.Component("render"),
		prompt:  RenderPrompt,
		fetchTO: 30 * time.Second,
	}
}

type ratio struct {
	W int `json:"w"`
	H int `json:"h"`
}

// GenerateRequest is the wire body sent to the service.
type GenerateRequest struct {
	Prompt             string `json:"prompt"`
	Provider           string `json:"provider,omitempty"`
	Model              string `json:"model,omitempty"`
	InputImage         string `json:"input_image"`
	InputImageMimeType string `json:"input_image_mime_type"`
	Ratio              ratio  `json:"ratio"`
}

type generatedImage struct {
	Src string `json:"src"`
}

// Generate renders sourceImage. URL sources are inlined first because the
// service only accepts base64 payloads with an explicit content type.
func (c *Client) Generate(ctx context.Context, sourceImage string) (Result, error) {
	if err := ValidateSource(sourceImage); err != nil {
		return Result{}, err
	}

	dataURL, err := c.normalize(ctx, sourceImage)
	if err != nil {
		return Result{}, err
	}

	parsed, err := ParseDataURL(dataURL)
	if err != nil {
		return Result{}, err
	}

	req := GenerateRequest{
		Prompt:             c.prompt,
		Provider:           c.opts.Provider,
		Model:              c.opts.Model,
		InputImage:         parsed.Payload,
		InputImageMimeType: parsed.MimeType,
		Ratio:              ratio{W: 1024, H: 1024},
	}

	c.log.Info().Str("model", c.opts.Model).Str("mime", parsed.MimeType).Msg("generating render")

	resp, err := c.http.POST(generatePath).
		Context().Set(ctx).
		Header().Add("Accept", "application/json").
		Body().AsJSON(req).
		Send()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body().Close()

	raw, err := resp.Body().AsString()
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.Status().IsError() {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.Status().Code(), strings.TrimSpace(raw))
	}

	src, err := firstImageSrc([]byte(raw))
	if err != nil {
		return Result{}, err
	}
	if src == "" {
		c.log.Warn().Msg("render response carried no image")
		return Result{}, nil
	}

	rendered, err := c.normalize(ctx, src)
	if err != nil {
		return Result{}, fmt.Errorf("inline rendered image: %w", err)
	}
	return Result{RenderedImage: rendered}, nil
}

func (c *Client) normalize(ctx context.Context, src string) (string, error) {
	if IsDataURL(src) {
		return src, nil
	}
	return FetchAsDataURL(ctx, src, c.fetchTO)
}

// firstImageSrc accepts a single image object or an array of them.
func firstImageSrc(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil
	}

	if body[0] == '[' {
		var imgs []generatedImage
		if err := json.Unmarshal(body, &imgs); err != nil {
			return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
		}
		if len(imgs) == 0 {
			return "", nil
		}
		return imgs[0].Src, nil
	}

	var img generatedImage
	if err := json.Unmarshal(body, &img); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return img.Src, nil
}

// IsInputError reports whether err came from a bad source rather than the service.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidSource) || errors.Is(err, ErrNotImage)
}
