package analyst

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// queryPlaceholder matches chart embeds of the form {{query:ID}}.
var queryPlaceholder = regexp.MustCompile(`\{\{query:([A-Za-z0-9_-]+)\}\}`)

// reportMarkdown renders generated reports. Raw HTML stays enabled so the
// injected chart mount points survive conversion.
var reportMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderReportHTML converts a generated report to HTML for delivery.
// Placeholders naming a harvested query become chart mount points the
// frontend hydrates from the run's queries map; placeholders naming
// unknown queries are left as text.
func RenderReportHTML(markdown string, queries map[string]any) (string, error) {
	replaced := queryPlaceholder.ReplaceAllStringFunc(markdown, func(m string) string {
		id := queryPlaceholder.FindStringSubmatch(m)[1]
		if _, ok := queries[id]; !ok {
			return m
		}
		return fmt.Sprintf(`<div class="report-chart" data-query-id="%s"></div>`, id)
	})

	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(replaced), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
