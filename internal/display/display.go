// Package display formats a predicted downtime category for the page.
package display

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Known labels
const (
	LabelLow      = "Low_Downtime"
	LabelModerate = "Moderate_Downtime"
	LabelHigh     = "High_Downtime"
)

// Labels lists the known labels
var Labels = []string{LabelLow, LabelModerate, LabelHigh}

// Caption precedes every prediction
const Caption = "Predicted Downtime Category:"

// Style is the colour and weight a label is shown with
type Style struct {
	Color string `json:"color"`
	Bold  bool   `json:"bold"`
}

// CSS renders the style as an inline style attribute value
func (s Style) CSS() string {
	if s.Bold {
		return fmt.Sprintf("color: %s; font-weight:bold;", s.Color)
	}
	return fmt.Sprintf("color: %s;", s.Color)
}

// CaptionStyle is used for the caption regardless of the label
var CaptionStyle = Style{Color: "red", Bold: true}

// StyleFor maps a label to its display style; unknown labels are plain black
func StyleFor(label string) Style {
	switch label {
	case LabelLow:
		return Style{Color: "lightgreen", Bold: true}
	case LabelModerate:
		return Style{Color: "yellow", Bold: true}
	case LabelHigh:
		return Style{Color: "orange", Bold: true}
	}
	return Style{Color: "black"}
}

var (
	policyOnce   sync.Once
	resultPolicy *bluemonday.Policy
	aboutPolicy  *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("span")
		p.AllowAttrs("style").Matching(regexp.MustCompile(`^[a-z: ;\-#0-9]+$`)).OnElements("span")
		resultPolicy = p

		aboutPolicy = bluemonday.UGCPolicy()
	})
	return resultPolicy, aboutPolicy
}

// RenderResult returns the caption and the styled label as an HTML fragment.
// The label is escaped before styling, and the fragment passes through a
// policy that only keeps styled spans.
func RenderResult(label string) template.HTML {
	policy, _ := policies()
	caption := fmt.Sprintf(`<span style="%s">%s</span> `, CaptionStyle.CSS(), html.EscapeString(Caption))
	value := fmt.Sprintf(`<span style="%s">%s</span>`, StyleFor(label).CSS(), html.EscapeString(label))
	return template.HTML(policy.Sanitize(caption + value))
}

// About is the notice shown after a prediction
type About struct {
	Classifier string
	Accuracy   float64 // fraction, 0..1; zero when unknown
	BuiltBy    string
}

// Markdown renders the notice as markdown, one hard-wrapped line per fact
func (a About) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Classifier:** %s  \n", a.Classifier)
	if a.Accuracy > 0 {
		fmt.Fprintf(&b, "**Accuracy:** %s  \n", FormatAccuracy(a.Accuracy))
	}
	if a.BuiltBy != "" {
		fmt.Fprintf(&b, "**Built by:** %s\n", a.BuiltBy)
	}
	return b.String()
}

// FormatAccuracy formats a fraction as a percentage with two decimals
func FormatAccuracy(acc float64) string {
	return fmt.Sprintf("%.2f %%", acc*100)
}

// RenderAbout converts the notice to sanitised HTML
func RenderAbout(a About) template.HTML {
	_, policy := policies()
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	out := markdown.ToHTML([]byte(a.Markdown()), p, r)
	return template.HTML(policy.SanitizeBytes(out))
}
