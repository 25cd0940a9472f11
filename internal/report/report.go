// Package report renders audit reports for the terminal, as Markdown, or as
// HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/valpere/wordalign/internal/auditor"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Render dispatches on format.
func Render(format Format, title string, r auditor.Report) (string, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatText, "":
		return Text(title, r), nil
	case FormatMarkdown, "md":
		return Markdown(title, r), nil
	case FormatHTML:
		return HTML(title, r), nil
	}
	return "", fmt.Errorf("unknown report format %q (use text, markdown or html)", format)
}

func Text(title string, r auditor.Report) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Quality audit: %s\n", title)
	fmt.Fprintf(&b, "  Source vocabulary:   %s words\n", humanize.Comma(int64(r.TotalWords)))
	fmt.Fprintf(&b, "  Translations:        %s (%.1f per word)\n", humanize.Comma(int64(r.TotalTranslations)), r.AvgTranslations)
	fmt.Fprintf(&b, "  Sampled:             %d\n", r.Sampled)
	fmt.Fprintf(&b, "  Good:                %d (%s)\n", r.GoodCount, percent(r.GoodCount, r.Sampled))
	fmt.Fprintf(&b, "  Suspicious:          %d (%s)\n", r.SuspiciousCount, percent(r.SuspiciousCount, r.Sampled))

	writeExamples := func(name string, ex []auditor.Example) {
		if len(ex) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", name)
		for _, e := range ex {
			fmt.Fprintf(&b, "  %s -> %s (p=%.4f)", e.Source, e.Target, e.Probability)
			if e.Reason != "" {
				fmt.Fprintf(&b, " [%s]", e.Reason)
			}
			b.WriteByte('\n')
		}
	}
	writeExamples("Good examples", r.Good)
	writeExamples("Suspicious examples", r.Suspicious)
	return b.String()
}

func Markdown(title string, r auditor.Report) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Quality audit: %s\n\n", title)
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source vocabulary | %s |\n", humanize.Comma(int64(r.TotalWords)))
	fmt.Fprintf(&b, "| Translations | %s |\n", humanize.Comma(int64(r.TotalTranslations)))
	fmt.Fprintf(&b, "| Translations per word | %.1f |\n", r.AvgTranslations)
	fmt.Fprintf(&b, "| Sampled | %d |\n", r.Sampled)
	fmt.Fprintf(&b, "| Good | %d (%s) |\n", r.GoodCount, percent(r.GoodCount, r.Sampled))
	fmt.Fprintf(&b, "| Suspicious | %d (%s) |\n", r.SuspiciousCount, percent(r.SuspiciousCount, r.Sampled))

	writeExamples := func(name string, ex []auditor.Example) {
		if len(ex) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n\n| Source | Target | Probability | Reason |\n|---|---|---|---|\n", name)
		for _, e := range ex {
			fmt.Fprintf(&b, "| %s | %s | %.4f | %s |\n", escape(e.Source), escape(e.Target), e.Probability, e.Reason)
		}
	}
	writeExamples("Good examples", r.Good)
	writeExamples("Suspicious examples", r.Suspicious)
	return b.String()
}

func HTML(title string, r auditor.Report) string {
	return ToHTML([]byte(Markdown(title, r)))
}

func ToHTML(md []byte) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Quality audit",
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Tables
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

// escape keeps table cells intact when a token is a pipe or backslash.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `|`, `\|`).Replace(s)
}
