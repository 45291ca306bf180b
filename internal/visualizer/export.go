package visualizer

import (
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/roomi-app/roomi-backend/internal/render"
)

const fallbackExportName = "roomi-render"

var ErrNothingToExport = errors.New("no render to export")

// Artifact is a downloadable render.
type Artifact struct {
	Filename string
	MimeType string
	Data     []byte
}

// Export decodes the displayed render. It performs no I/O.
func (c *Controller) Export() (Artifact, error) {
	c.mu.Lock()
	var name, rendered string
	if c.project != nil {
		name, rendered = c.project.Name, c.project.RenderedImage
	}
	c.mu.Unlock()

	if rendered == "" {
		return Artifact{}, ErrNothingToExport
	}
	return ExportRender(name, rendered)
}

// ExportRender turns an inline render into a named artifact.
func ExportRender(name, dataURL string) (Artifact, error) {
	d, err := render.ParseDataURL(dataURL)
	if err != nil {
		return Artifact{}, err
	}
	data, err := d.Bytes()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Filename: FileName(name) + extensionFor(d.MimeType),
		MimeType: d.MimeType,
		Data:     data,
	}, nil
}

// FileName lowercases name and keeps letters, digits, dashes and
// underscores; runs of anything else become a single dash.
func FileName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallbackExportName
	}
	return out
}

func extensionFor(mime string) string {
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	_, sub, ok := strings.Cut(mime, "/")
	if !ok || sub == "" {
		return ".png"
	}
	sub, _, _ = strings.Cut(sub, "+")
	return "." + FileName(sub)
}
