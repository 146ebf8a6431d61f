// Package report renders the human-readable run report written next to
// the artifacts. It is diagnostic output for operators, not a stable
// machine format; downstream tooling should read the JSON diff reports
// and the run-history store instead.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// Route is one route's line in the report.
type Route struct {
	Route          string
	ArtifactKey    string
	AssertFailures int
	VisualStatus   string
	VisualSummary  string

	// HTML is the captured snapshot, used for the text excerpt. Nil
	// when the route produced no artifacts.
	HTML []byte
}

// Data is everything the report needs.
type Data struct {
	RunID      string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	OK         bool
	Routes     []Route
}

const excerptLimit = 1500

// Render produces the markdown report body.
func Render(d Data) string {
	var b strings.Builder

	status := "PASS"
	if !d.OK {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "# Verification report %s\n\n", d.RunID)
	fmt.Fprintf(&b, "- Base URL: %s\n", d.BaseURL)
	fmt.Fprintf(&b, "- Started: %s\n", d.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", d.FinishedAt.Sub(d.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "- Result: **%s**\n\n", status)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	policy := bluemonday.UGCPolicy()

	for _, rt := range d.Routes {
		mark := "PASS"
		if rt.AssertFailures > 0 || rt.VisualStatus == "fail" {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "## %s - %s\n\n", rt.Route, mark)
		fmt.Fprintf(&b, "- Assertion failures: %d\n", rt.AssertFailures)
		if rt.VisualSummary != "" {
			fmt.Fprintf(&b, "- Visual diff: %s (%s)\n", rt.VisualStatus, rt.VisualSummary)
		} else {
			fmt.Fprintf(&b, "- Visual diff: %s\n", rt.VisualStatus)
		}
		fmt.Fprintf(&b, "- Artifacts: page_%s.png, page_%s.html\n", rt.ArtifactKey, rt.ArtifactKey)

		if excerpt := pageExcerpt(conv, policy, rt.HTML); excerpt != "" {
			fmt.Fprintf(&b, "\n> %s\n", excerpt)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// pageExcerpt extracts a short text rendition of the captured page:
// sanitized first, then converted to markdown, then clipped.
func pageExcerpt(conv *converter.Converter, policy *bluemonday.Policy, html []byte) string {
	if len(html) == 0 {
		return ""
	}
	clean := policy.Sanitize(string(html))
	md, err := conv.ConvertString(clean)
	if err != nil {
		return ""
	}
	md = strings.Join(strings.Fields(md), " ")
	if len(md) > excerptLimit {
		md = md[:excerptLimit] + "…"
	}
	return md
}
