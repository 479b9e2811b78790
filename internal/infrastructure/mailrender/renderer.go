package mailrender

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer turns markdown mail templates into sanitized HTML bodies.
// Templates may interpolate user-provided values, so the output is
// always run through the sanitizer.
type Renderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	printer *message.Printer
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		policy:  bluemonday.UGCPolicy(),
		printer: message.NewPrinter(language.English),
	}
}

// Render converts markdown to sanitized HTML and returns both the HTML
// body and the original markdown as the plain-text alternative.
func (r *Renderer) Render(markdown string) (html string, plain string, err error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), markdown, nil
}

// FormatAmount renders a minor-unit amount with grouping separators,
// e.g. FormatAmount(123456, "usd") -> "USD 1,234.56".
func (r *Renderer) FormatAmount(minorUnits int64, currencyCode string) string {
	return r.printer.Sprintf("%s %.2f", strings.ToUpper(currencyCode), float64(minorUnits)/100)
}
