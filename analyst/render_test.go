package analyst

import (
	"strings"
	"testing"
)

func TestRenderReportHTML(t *testing.T) {
	queries := map[string]any{"mxgen_abc": map[string]any{"query": "SELECT 1"}}

	md := "# Title\n\nHere's the breakdown: {{query:mxgen_abc}}\n"
	out, err := RenderReportHTML(md, queries)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<h1>Title</h1>") {
		t.Errorf("heading not rendered: %q", out)
	}
	if !strings.Contains(out, `<div class="report-chart" data-query-id="mxgen_abc"></div>`) {
		t.Errorf("chart placeholder not expanded: %q", out)
	}
	if strings.Contains(out, "{{query:mxgen_abc}}") {
		t.Errorf("raw placeholder leaked: %q", out)
	}
}

func TestRenderReportHTMLUnknownQuery(t *testing.T) {
	out, err := RenderReportHTML("See {{query:unknown}} for details.\n", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "{{query:unknown}}") {
		t.Errorf("unknown placeholder should stay literal: %q", out)
	}
	if strings.Contains(out, "report-chart") {
		t.Errorf("unknown placeholder rendered as a chart: %q", out)
	}
}

func TestRenderReportHTMLTables(t *testing.T) {
	md := "| region | revenue |\n| --- | --- |\n| EMEA | 100 |\n"
	out, err := RenderReportHTML(md, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<table>") || !strings.Contains(out, "<td>EMEA</td>") {
		t.Errorf("table not rendered: %q", out)
	}
}
