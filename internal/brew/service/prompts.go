package service

import (
	"fmt"
	"strings"
)

const draftOutlineSystem = "You are a presentation planner. Respond with a single JSON object and nothing else."

const outlineShape = `{
  "title": "Presentation Title",
  "summary": "Brief description of what this presentation covers",
  "slides": [
    {
      "slideNumber": 1,
      "title": "Slide Title",
      "type": "title",
      "keyPoints": ["Main point or tagline"]
    },
    {
      "slideNumber": 2,
      "title": "Slide Title",
      "type": "content",
      "keyPoints": ["First point", "Second point", "Third point"]
    }
  ]
}`

const slideTypes = `Slide types: "title", "content", "quote", "image", "chart", "timeline", "comparison", "conclusion"`

func topicOutlinePrompt(topic string, slideCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a presentation outline for: %q\n\n", topic)
	fmt.Fprintf(&b, "Generate an outline with %d slides. Return ONLY valid JSON (no markdown, no code fences) with this structure:\n\n", slideCount)
	b.WriteString(outlineShape)
	b.WriteString("\n\n")
	b.WriteString(slideTypes)
	b.WriteString("\nInclude 3-5 key points per content slide.")
	return b.String()
}

func analyzePrompt(content string, opts AnalyzeOptions) string {
	var b strings.Builder
	b.WriteString("Analyze the following content and create a presentation outline. Extract the key structure, main points, and organize into slides.\n\n")
	b.WriteString("Content to analyze:\n\"\"\"\n")
	b.WriteString(content)
	b.WriteString("\n\"\"\"\n\n")
	if opts.AutoDetectHeadings {
		b.WriteString("Detect headings from # symbols or capitalized lines.\n")
	}
	if opts.CreateTitleSlide {
		b.WriteString("Include a title slide as the first slide.\n")
	}
	if opts.SmartFormatting {
		b.WriteString("Optimize bullet points and key messages for slide format.\n")
	}
	b.WriteString("\nReturn ONLY valid JSON (no markdown, no code fences) with this structure:\n")
	b.WriteString(outlineShape)
	b.WriteString("\n\n")
	b.WriteString(slideTypes)
	b.WriteString("\nCreate between 5-15 slides depending on content length.\nInclude 3-5 key points per content slide.\nExtract the most important information from the content.")
	return b.String()
}
