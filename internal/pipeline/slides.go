package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/pkg/metrics"
)

var errSlideEmpty = errors.New("slide response has no title or content")

var layouts = map[string]bool{
	"content":    true,
	"two-column": true,
	"image-text": true,
	"title":      true,
}

type rawSlide struct {
	Title        string          `json:"title"`
	Content      json.RawMessage `json:"content"`
	Layout       string          `json:"layout"`
	DesignNotes  string          `json:"designNotes"`
	SpeakerNotes string          `json:"speakerNotes"`
}

// ParseSlide turns a provider response into slide number n. Missing titles
// fall back to the outline stub.
func ParseSlide(text string, n int, stub brew.OutlineSlide) (brew.Slide, error) {
	raw, err := ai.ExtractJSON(text)
	if err != nil {
		return brew.Slide{}, err
	}
	var rs rawSlide
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return brew.Slide{}, fmt.Errorf("decode slide %d: %w", n, err)
	}
	content := flattenContent(rs.Content)
	if strings.TrimSpace(rs.Title) == "" && content == "" {
		return brew.Slide{}, errSlideEmpty
	}
	s := brew.Slide{
		Number:       n,
		Title:        strings.TrimSpace(rs.Title),
		Content:      content,
		Layout:       rs.Layout,
		DesignNotes:  rs.DesignNotes,
		SpeakerNotes: rs.SpeakerNotes,
	}
	if s.Title == "" {
		s.Title = stubTitle(stub, n)
	}
	if !layouts[s.Layout] {
		s.Layout = "content"
	}
	return s, nil
}

// flattenContent accepts a string or a list of strings.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return bulletList(items)
	}
	return ""
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			b.WriteString("- ")
			b.WriteString(it)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// PlaceholderSlide stands in for a slide whose generation failed.
func PlaceholderSlide(n int, stub brew.OutlineSlide) brew.Slide {
	return brew.Slide{
		Number:      n,
		Title:       stubTitle(stub, n),
		Content:     bulletList(stub.KeyPoints),
		Layout:      "content",
		Placeholder: true,
	}
}

var markdown = goldmark.New()

// renderHTML fills ContentHTML from the markdown body. Rendering errors leave
// it empty.
func renderHTML(s *brew.Slide) {
	if s.Content == "" {
		return
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s.Content), &buf); err == nil {
		s.ContentHTML = buf.String()
	}
}

// generateSlides requests one slide at a time in outline order. A failed or
// malformed slide becomes a placeholder. It returns false if the client went
// away.
func (r *Run) generateSlides(em *emitter, st *runState) bool {
	defer observe("slides", time.Now())
	if !em.emit(events.SlideStart{Message: "Generating slides..."}) {
		return false
	}

	brand := r.req.Brand
	var theme *brew.ThemeStyle
	if r.draft != nil {
		if brand == nil {
			brand = r.draft.Brand
		}
		theme = r.draft.Theme
	}

	total := len(st.outline.Slides)
	st.slides = make([]brew.Slide, 0, total)
	for i, stub := range st.outline.Slides {
		n := i + 1
		slide := r.generateSlide(em.ctx, n, stub, brand, theme)
		slide.Theme = theme
		renderHTML(&slide)
		if slide.Placeholder {
			st.placeholders++
			metrics.SlidesGenerated.WithLabelValues("placeholder").Inc()
		} else {
			metrics.SlidesGenerated.WithLabelValues("generated").Inc()
		}
		st.slides = append(st.slides, slide)

		if !em.emit(events.SlideGenerated{
			SlideNumber: n,
			TotalSlides: total,
			Slide:       slide,
			Progress:    float64(n) / float64(total) * 100,
		}) {
			return false
		}
	}

	return em.emit(events.SlidesComplete{
		Message:    fmt.Sprintf("Generated %d slides", len(st.slides)),
		SlideCount: len(st.slides),
	})
}

func (r *Run) generateSlide(parent context.Context, n int, stub brew.OutlineSlide, brand *brew.Brand, theme *brew.ThemeStyle) brew.Slide {
	ctx, cancel := callContext(parent, r.o.settings.SlideTimeout)
	defer cancel()
	text, err := r.o.gen.Generate(ctx, ai.Request{
		System:      slideSystem,
		Prompt:      slidePrompt(n, stub, brand, theme),
		MaxTokens:   r.o.settings.SlideMaxTokens,
		Temperature: r.o.settings.Temperature,
	})
	if err == nil {
		var slide brew.Slide
		if slide, err = ParseSlide(text, n, stub); err == nil {
			return slide
		}
	}
	r.log.Warn("slide generation failed, using placeholder", "slide", n, "error", err)
	return PlaceholderSlide(n, stub)
}
