package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/slidecoffee/brew-service/internal/brew"
)

const (
	outlineSystem = "You are a presentation expert. Return only valid JSON."
	slideSystem   = "You are a presentation designer. Return only valid JSON."
)

const outlineShape = `Generate a JSON outline with:
{
  "title": "Presentation Title",
  "summary": "Brief summary",
  "slideCount": 8,
  "slides": [
    {"title": "Slide 1", "keyPoints": ["Point 1", "Point 2"]},
    ...
  ]
}`

const slideShape = `Return JSON:
{
  "title": "Slide Title",
  "content": "Detailed content with bullet points",
  "layout": "content|two-column|image-text|title",
  "designNotes": "Visual suggestions",
  "speakerNotes": "What to say"
}`

func outlinePrompt(topic, researchContext string, plan json.RawMessage, slideCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed presentation outline for: %s\n\n", topic)
	if researchContext != "" {
		fmt.Fprintf(&b, "Research Context:\n%s\n", researchContext)
	}
	if len(plan) > 0 {
		var pretty strings.Builder
		if buf, err := json.MarshalIndent(json.RawMessage(plan), "", "  "); err == nil {
			pretty.Write(buf)
		} else {
			pretty.Write(plan)
		}
		fmt.Fprintf(&b, "User's Plan:\n%s\n\n", pretty.String())
	}
	if slideCount > 0 {
		fmt.Fprintf(&b, "Create exactly %d slides.\n\n", slideCount)
	}
	b.WriteString(outlineShape)
	return b.String()
}

func slidePrompt(number int, stub brew.OutlineSlide, brand *brew.Brand, theme *brew.ThemeStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate detailed content for slide %d:\n\n", number)
	fmt.Fprintf(&b, "Title: %s\n", stubTitle(stub, number))
	points, _ := json.Marshal(nonNil(stub.KeyPoints))
	fmt.Fprintf(&b, "Key Points: %s\n\n", points)

	if brand != nil {
		b.WriteString("Brand Guidelines:\n")
		fmt.Fprintf(&b, "- Primary Color: %s\n", brand.PrimaryColor)
		fmt.Fprintf(&b, "- Secondary Color: %s\n", brand.SecondaryColor)
		fmt.Fprintf(&b, "- Font Heading: %s\n", brand.FontHeading)
		fmt.Fprintf(&b, "- Font Body: %s\n\n", brand.FontBody)
	}
	if theme != nil && (len(theme.Colors) > 0 || len(theme.Typography) > 0) {
		b.WriteString("Theme:\n")
		writeSorted(&b, "Color", theme.Colors)
		writeSorted(&b, "Typography", theme.Typography)
		b.WriteString("\n")
	}
	b.WriteString(slideShape)
	return b.String()
}

func writeSorted(b *strings.Builder, label string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- %s %s: %s\n", label, k, m[k])
	}
}

func stubTitle(stub brew.OutlineSlide, number int) string {
	if t := strings.TrimSpace(stub.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Slide %d", number)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
