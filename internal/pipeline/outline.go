package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/events"
)

// ErrOutlineInvalid means the provider's outline could not be used. It is
// always fatal to the run.
var ErrOutlineInvalid = errors.New("invalid outline structure from AI")

type rawOutline struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Slides  []struct {
		Title     string          `json:"title"`
		Type      string          `json:"type"`
		KeyPoints json.RawMessage `json:"keyPoints"`
	} `json:"slides"`
}

// ParseOutline extracts a structured outline from a provider response. A
// title and at least one slide are required.
func ParseOutline(text string) (brew.Outline, error) {
	raw, err := ai.ExtractJSON(text)
	if err != nil {
		return brew.Outline{}, fmt.Errorf("%w: %v", ErrOutlineInvalid, err)
	}
	var ro rawOutline
	if err := json.Unmarshal([]byte(raw), &ro); err != nil {
		return brew.Outline{}, fmt.Errorf("%w: %v", ErrOutlineInvalid, err)
	}
	if strings.TrimSpace(ro.Title) == "" {
		return brew.Outline{}, fmt.Errorf("%w: missing title", ErrOutlineInvalid)
	}
	if len(ro.Slides) == 0 {
		return brew.Outline{}, fmt.Errorf("%w: no slides", ErrOutlineInvalid)
	}
	out := brew.Outline{
		Title:   strings.TrimSpace(ro.Title),
		Summary: strings.TrimSpace(ro.Summary),
		Slides:  make([]brew.OutlineSlide, 0, len(ro.Slides)),
	}
	for _, s := range ro.Slides {
		out.Slides = append(out.Slides, brew.OutlineSlide{
			Title:     strings.TrimSpace(s.Title),
			Type:      s.Type,
			KeyPoints: keyPointList(s.KeyPoints),
		})
	}
	return NormalizeOutline(out), nil
}

// keyPointList accepts a list or a single value. Strings and numbers become
// points; nulls, blanks and nested structures are dropped.
func keyPointList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	var points []string
	for _, it := range items {
		var p string
		switch x := it.(type) {
		case string:
			p = strings.TrimSpace(x)
		case json.Number:
			p = x.String()
		}
		if p != "" {
			points = append(points, p)
		}
	}
	return points
}

// NormalizeOutline renumbers slides densely from 1, fills default types and
// titles, and never returns nil key point lists.
func NormalizeOutline(o brew.Outline) brew.Outline {
	slides := make([]brew.OutlineSlide, len(o.Slides))
	for i, s := range o.Slides {
		s.SlideNumber = i + 1
		s.Title = stubTitle(s, i+1)
		if s.Type == "" {
			s.Type = "content"
		}
		s.KeyPoints = nonNil(s.KeyPoints)
		slides[i] = s
	}
	o.Slides = slides
	return o
}

// TruncateOutline keeps at most limit slides.
func TruncateOutline(o brew.Outline, limit int) (brew.Outline, bool) {
	if limit <= 0 || len(o.Slides) <= limit {
		return o, false
	}
	o.Slides = o.Slides[:limit]
	return o, true
}

// outline produces the run's outline from the draft or one provider call.
// Any failure here is fatal.
func (r *Run) outline(em *emitter, st *runState) error {
	defer observe("outline", time.Now())
	if !em.emit(events.OutlineStart{Message: "Creating presentation outline..."}) {
		return errAbandoned
	}

	var outline brew.Outline
	if r.draft != nil {
		outline = NormalizeOutline(*r.draft.Outline)
	} else {
		ctx, cancel := callContext(em.ctx, r.o.settings.OutlineTimeout)
		text, err := r.o.gen.Generate(ctx, ai.Request{
			System:      outlineSystem,
			Prompt:      outlinePrompt(r.promptTopic(), st.researchContext, r.req.Plan, r.req.SlideCount),
			MaxTokens:   r.o.settings.OutlineMaxTokens,
			Temperature: r.o.settings.Temperature,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", errOutlineCall, err)
		}
		if outline, err = ParseOutline(text); err != nil {
			return err
		}
	}

	if em.gone() {
		return errAbandoned
	}
	outline, truncated := TruncateOutline(outline, r.maxSlides())
	if truncated {
		r.log.Info("outline truncated", "max_slides", r.maxSlides())
	}
	st.outline = outline
	if !em.emit(events.OutlineComplete{
		Outline:    outline,
		SlideCount: len(outline.Slides),
		Message:    fmt.Sprintf("Outline ready with %d slides", len(outline.Slides)),
	}) {
		return errAbandoned
	}
	return nil
}

// promptTopic is the subject line of the outline prompt, capped at 500 runes.
func (r *Run) promptTopic() string {
	t := []rune(r.topic())
	if len(t) > 500 {
		t = t[:500]
	}
	return string(t)
}
