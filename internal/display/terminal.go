package display

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

// terminal equivalents of the CSS colours
var ansiColors = map[string]string{
	"lightgreen": "green+h",
	"yellow":     "yellow",
	"orange":     "208",
	"red":        "red",
	"black":      "default",
}

// ANSI returns the mgutz/ansi style string for s
func (s Style) ANSI() string {
	c, ok := ansiColors[s.Color]
	if !ok {
		c = "default"
	}
	if !s.Bold {
		return c
	}
	if strings.Contains(c, "+") {
		return c + "b"
	}
	return c + "+b"
}

// RenderTerminal is RenderResult for a terminal
func RenderTerminal(label string) string {
	return ansi.Color(Caption, CaptionStyle.ANSI()) + " " + ansi.Color(label, StyleFor(label).ANSI())
}

// Text renders the notice without markup
func (a About) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classifier: %s\n", a.Classifier)
	if a.Accuracy > 0 {
		fmt.Fprintf(&b, "Accuracy: %s\n", FormatAccuracy(a.Accuracy))
	}
	if a.BuiltBy != "" {
		fmt.Fprintf(&b, "Built by: %s\n", a.BuiltBy)
	}
	return b.String()
}
