package display

import (
	"strings"
	"testing"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		label string
		want  Style
	}{
		{LabelLow, Style{Color: "lightgreen", Bold: true}},
		{LabelModerate, Style{Color: "yellow", Bold: true}},
		{LabelHigh, Style{Color: "orange", Bold: true}},
		{"No_Downtime", Style{Color: "black"}},
		{"", Style{Color: "black"}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := StyleFor(tt.label); got != tt.want {
				t.Errorf("StyleFor(%q) = %+v, want %+v", tt.label, got, tt.want)
			}
		})
	}
}

func TestStyleCSS(t *testing.T) {
	if got := CaptionStyle.CSS(); got != "color: red; font-weight:bold;" {
		t.Errorf("Unexpected caption CSS %q", got)
	}
	if got := StyleFor("other").CSS(); got != "color: black;" {
		t.Errorf("Unexpected plain CSS %q", got)
	}
}

func TestRenderResult(t *testing.T) {
	out := string(RenderResult(LabelModerate))

	want := `<span style="color: red; font-weight:bold;">Predicted Downtime Category:</span> ` +
		`<span style="color: yellow; font-weight:bold;">Moderate_Downtime</span>`
	if out != want {
		t.Errorf("RenderResult mismatch:\n got: %s\nwant: %s", out, want)
	}
}

func TestRenderResultEscapesLabel(t *testing.T) {
	out := string(RenderResult(`<script>alert(1)</script>`))

	if strings.Contains(out, "<script") {
		t.Errorf("Expected the label to be escaped, got %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("Expected the escaped label to be kept as text, got %s", out)
	}
	if !strings.Contains(out, `style="color: black;"`) {
		t.Errorf("Expected unknown labels to be black, got %s", out)
	}
}

func TestFormatAccuracy(t *testing.T) {
	if got := FormatAccuracy(0.92); got != "92.00 %" {
		t.Errorf("Expected 92.00 %%, got %q", got)
	}
}

func TestRenderAbout(t *testing.T) {
	out := string(RenderAbout(About{
		Classifier: "Random Forest Classifier",
		Accuracy:   0.92,
		BuiltBy:    "Suraj R. Yadav",
	}))

	for _, want := range []string{
		"<strong>Classifier:</strong> Random Forest Classifier",
		"<strong>Accuracy:</strong> 92.00 %",
		"<strong>Built by:</strong> Suraj R. Yadav",
		"<br",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %s", want, out)
		}
	}
}

func TestRenderAboutSanitises(t *testing.T) {
	out := string(RenderAbout(About{Classifier: `<img src=x onerror=alert(1)>`, Accuracy: 0.5}))
	if strings.Contains(out, "onerror") {
		t.Errorf("Expected event handlers to be stripped, got %s", out)
	}
	if strings.Contains(out, "Built by") {
		t.Errorf("Expected no author line without an author, got %s", out)
	}
}

func TestStyleANSI(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{LabelLow, "green+hb"},
		{LabelModerate, "yellow+b"},
		{LabelHigh, "208+b"},
		{"Unknown", "default"},
	}
	for _, tt := range tests {
		if got := StyleFor(tt.label).ANSI(); got != tt.want {
			t.Errorf("ANSI(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
	if got := CaptionStyle.ANSI(); got != "red+b" {
		t.Errorf("Unexpected caption style %q", got)
	}
}

func TestRenderTerminal(t *testing.T) {
	out := RenderTerminal(LabelHigh)

	if !strings.Contains(out, Caption) || !strings.Contains(out, LabelHigh) {
		t.Errorf("Expected caption and label, got %q", out)
	}
	if !strings.Contains(out, "\x1b[") {
		t.Errorf("Expected ANSI escapes, got %q", out)
	}
}

func TestAboutText(t *testing.T) {
	got := About{Classifier: "Random Forest Classifier", Accuracy: 0.92}.Text()
	want := "Classifier: Random Forest Classifier\nAccuracy: 92.00 %\n"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestAboutUnknownAccuracy(t *testing.T) {
	a := About{Classifier: "Remote classifier"}

	if got := a.Text(); got != "Classifier: Remote classifier\n" {
		t.Errorf("Text() = %q, want only the classifier line", got)
	}
	if out := string(RenderAbout(a)); strings.Contains(out, "Accuracy") {
		t.Errorf("Expected no accuracy line, got %s", out)
	}
}
