// Package events defines the closed set of progress events streamed to the
// client during a generation run, plus the sinks that deliver them.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slidecoffee/brew-service/internal/brew"
)

// Type is the wire tag carried by every event.
type Type string

const (
	TypeStart            Type = "start"
	TypeResearchStart    Type = "research_start"
	TypeResearchSource   Type = "research_source"
	TypeResearchComplete Type = "research_complete"
	TypeResearchError    Type = "research_error"
	TypeOutlineStart     Type = "outline_start"
	TypeOutlineComplete  Type = "outline_complete"
	TypeSlideStart       Type = "slide_start"
	TypeSlideGenerated   Type = "slide_generated"
	TypeSlidesComplete   Type = "slides_complete"
	TypeComplete         Type = "complete"
	TypeError            Type = "error"
)

// Event is implemented only by the payload structs in this package.
type Event interface {
	Type() Type
	isEvent()
}

type Start struct {
	Message string `json:"message"`
}

type ResearchStart struct {
	Message string `json:"message"`
}

type ResearchSource struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type ResearchComplete struct {
	Message     string `json:"message"`
	SourceCount int    `json:"sourceCount"`
}

type ResearchError struct {
	Message string `json:"message"`
}

type OutlineStart struct {
	Message string `json:"message"`
}

type OutlineComplete struct {
	Outline    brew.Outline `json:"outline"`
	SlideCount int          `json:"slideCount"`
	Message    string       `json:"message"`
}

type SlideStart struct {
	Message string `json:"message"`
}

type SlideGenerated struct {
	SlideNumber int        `json:"slideNumber"`
	TotalSlides int        `json:"totalSlides"`
	Slide       brew.Slide `json:"slide"`
	Progress    float64    `json:"progress"`
}

type SlidesComplete struct {
	Message    string `json:"message"`
	SlideCount int    `json:"slideCount"`
}

// PresentationRef is the compact presentation summary sent on completion.
type PresentationRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SlideCount int    `json:"slideCount"`
}

// SourceRef is a research source reduced to what the client lists.
type SourceRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type Complete struct {
	Message      string          `json:"message"`
	Presentation PresentationRef `json:"presentation"`
	Sources      []SourceRef     `json:"sources"`
}

type Error struct {
	Message string `json:"message"`
}

func (Start) Type() Type            { return TypeStart }
func (ResearchStart) Type() Type    { return TypeResearchStart }
func (ResearchSource) Type() Type   { return TypeResearchSource }
func (ResearchComplete) Type() Type { return TypeResearchComplete }
func (ResearchError) Type() Type    { return TypeResearchError }
func (OutlineStart) Type() Type     { return TypeOutlineStart }
func (OutlineComplete) Type() Type  { return TypeOutlineComplete }
func (SlideStart) Type() Type       { return TypeSlideStart }
func (SlideGenerated) Type() Type   { return TypeSlideGenerated }
func (SlidesComplete) Type() Type   { return TypeSlidesComplete }
func (Complete) Type() Type         { return TypeComplete }
func (Error) Type() Type            { return TypeError }

func (Start) isEvent()            {}
func (ResearchStart) isEvent()    {}
func (ResearchSource) isEvent()   {}
func (ResearchComplete) isEvent() {}
func (ResearchError) isEvent()    {}
func (OutlineStart) isEvent()     {}
func (OutlineComplete) isEvent()  {}
func (SlideStart) isEvent()       {}
func (SlideGenerated) isEvent()   {}
func (SlidesComplete) isEvent()   {}
func (Complete) isEvent()         {}
func (Error) isEvent()            {}

// IsTerminal reports whether e ends a run.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Complete, Error:
		return true
	}
	return false
}

// Encode renders e as a single JSON object with its "type" tag first.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type(), err)
	}
	tag, _ := json.Marshal(string(e.Type()))
	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var ErrUnknownType = errors.New("unknown event type")

// Decode parses a payload produced by Encode back into its concrete event.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch head.Type {
	case TypeStart:
		return decodeAs[Start](data)
	case TypeResearchStart:
		return decodeAs[ResearchStart](data)
	case TypeResearchSource:
		return decodeAs[ResearchSource](data)
	case TypeResearchComplete:
		return decodeAs[ResearchComplete](data)
	case TypeResearchError:
		return decodeAs[ResearchError](data)
	case TypeOutlineStart:
		return decodeAs[OutlineStart](data)
	case TypeOutlineComplete:
		return decodeAs[OutlineComplete](data)
	case TypeSlideStart:
		return decodeAs[SlideStart](data)
	case TypeSlideGenerated:
		return decodeAs[SlideGenerated](data)
	case TypeSlidesComplete:
		return decodeAs[SlidesComplete](data)
	case TypeComplete:
		return decodeAs[Complete](data)
	case TypeError:
		return decodeAs[Error](data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", v.Type(), err)
	}
	return v, nil
}

// Sink receives events in emission order. A Send error means the consumer is
// gone and no further events should be written.
type Sink interface {
	Send(e Event) error
}

// Recorder is an in-memory Sink, used by the CLI and tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Send(e Event) error {
	r.Events = append(r.Events, e)
	return nil
}

// Types lists the recorded event tags in order.
func (r *Recorder) Types() []Type {
	out := make([]Type, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type())
	}
	return out
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }
