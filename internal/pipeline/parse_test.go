package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/brew"
)

func TestParseOutline(t *testing.T) {
	o, err := ParseOutline("Sure!\n```json\n{\"title\":\" Deck \",\"summary\":\"s\",\"slides\":[{\"title\":\"A\",\"keyPoints\":[\"x\"]},{\"title\":\"\"}]}\n```")
	require.NoError(t, err)
	require.Equal(t, "Deck", o.Title)
	require.Equal(t, "s", o.Summary)
	require.Len(t, o.Slides, 2)
	require.Equal(t, 1, o.Slides[0].SlideNumber)
	require.Equal(t, "content", o.Slides[0].Type)
	require.Equal(t, "Slide 2", o.Slides[1].Title)
	require.NotNil(t, o.Slides[1].KeyPoints)

	o, err = ParseOutline(`{"title":"T","slides":[{"title":"A","keyPoints":"single point"},{"title":"B","keyPoints":[1,2.5,null," ","x"]},{"title":"C","keyPoints":null},{"title":"D","keyPoints":{"odd":true}}]}`)
	require.NoError(t, err)
	require.Equal(t, []string{"single point"}, o.Slides[0].KeyPoints)
	require.Equal(t, []string{"1", "2.5", "x"}, o.Slides[1].KeyPoints)
	require.Equal(t, []string{}, o.Slides[2].KeyPoints)
	require.Equal(t, []string{}, o.Slides[3].KeyPoints)

	for _, bad := range []string{"", "nope", `{"title":"T","slides":"x"}`, `{"title":"T","slides":[]}`, `{"title":"","slides":[{"title":"a"}]}`} {
		_, err := ParseOutline(bad)
		require.True(t, errors.Is(err, ErrOutlineInvalid), bad)
	}
}

func TestTruncateOutline(t *testing.T) {
	o := brew.Outline{Slides: make([]brew.OutlineSlide, 5)}
	got, cut := TruncateOutline(o, 3)
	require.True(t, cut)
	require.Len(t, got.Slides, 3)
	got, cut = TruncateOutline(o, 5)
	require.False(t, cut)
	require.Len(t, got.Slides, 5)
}

func TestParseSlide(t *testing.T) {
	stub := brew.OutlineSlide{Title: "Stub"}
	s, err := ParseSlide(`{"content":"Body","layout":"two-column","designNotes":"d","speakerNotes":"n"}`, 3, stub)
	require.NoError(t, err)
	require.Equal(t, 3, s.Number)
	require.Equal(t, "Stub", s.Title)
	require.Equal(t, "two-column", s.Layout)
	require.Equal(t, "n", s.SpeakerNotes)

	_, err = ParseSlide(`{"layout":"content"}`, 1, stub)
	require.True(t, errors.Is(err, errSlideEmpty))
	_, err = ParseSlide(`{"title": 5}`, 1, stub)
	require.Error(t, err)
}

func TestPlaceholderSlideShape(t *testing.T) {
	s := PlaceholderSlide(4, brew.OutlineSlide{KeyPoints: []string{"a", " ", "b"}})
	require.Equal(t, 4, s.Number)
	require.Equal(t, "Slide 4", s.Title)
	require.Equal(t, "- a\n- b", s.Content)
	require.True(t, s.Placeholder)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"slideNumber", "title", "content", "layout"} {
		require.Contains(t, m, k)
	}
}

func TestPlanEstimate(t *testing.T) {
	require.Equal(t, 0, planEstimate(nil))
	require.Equal(t, 7, planEstimate(json.RawMessage(`{"slideCount":7}`)))
	require.Equal(t, 2, planEstimate(json.RawMessage(`{"slideCount":7,"slides":[{},{}]}`)))
	require.Equal(t, 0, planEstimate(json.RawMessage(`[1,2]`)))
}

func TestPhaseMachine(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.advance(PhaseQuotaChecked))
	require.NoError(t, m.advance(PhaseOutlining))
	require.Error(t, m.advance(PhaseResearching))
	require.NoError(t, m.advance(PhaseGeneratingSlides))
	require.Error(t, m.advance(PhaseFailed))
	require.NoError(t, m.advance(PhasePersisting))
	require.NoError(t, m.advance(PhaseCompleted))
	require.True(t, m.current().Terminal())
	require.Error(t, m.advance(PhaseFailed))
}

func TestOutlinePromptIncludesPlan(t *testing.T) {
	p := outlinePrompt("Topic", "", json.RawMessage(`{"title":"Plan","slides":[1]}`), 0)
	require.Contains(t, p, "Create a detailed presentation outline for: Topic")
	require.Contains(t, p, "User's Plan:\n{\n  \"title\": \"Plan\"")
	require.NotContains(t, p, "Research Context")
	require.NotContains(t, p, "Create exactly")

	require.Contains(t, outlinePrompt("Topic", "", nil, 6), "Create exactly 6 slides.")
}
