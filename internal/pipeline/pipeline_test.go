package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/quota"
	"github.com/slidecoffee/brew-service/internal/research"
	"github.com/slidecoffee/brew-service/internal/runs"
)

const q3Outline = `{"title":"Q3 Review","slides":[{"title":"Intro","keyPoints":["A","B"]},{"title":"Numbers","keyPoints":["C"]}]}`

// fakeGen answers outline prompts with outline and slide prompts via slide.
type fakeGen struct {
	mu       sync.Mutex
	outline  func() (string, error)
	slide    func(n int) (string, error)
	requests []ai.Request
}

func (f *fakeGen) Generate(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if req.System == outlineSystem {
		return f.outline()
	}
	var n int
	_, _ = fmt.Sscanf(req.Prompt, "Generate detailed content for slide %d:", &n)
	if f.slide == nil {
		return fmt.Sprintf(`{"title":"Slide %d","content":"- body %d","layout":"content"}`, n, n), nil
	}
	return f.slide(n)
}

func (f *fakeGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSearch struct {
	resp *research.Response
	err  error
}

func (s fakeSearch) Search(context.Context, string, int) (*research.Response, error) {
	return s.resp, s.err
}

type failingPresentations struct{}

func (failingPresentations) CreatePresentation(context.Context, *brew.Presentation) error {
	return errors.New("disk full")
}

type fixture struct {
	gen   *fakeGen
	repo  *repository.MemoryRepo
	runs  *runs.MemoryStore
	usage brew.Usage
	orch  *Orchestrator
}

func newFixture(t *testing.T, gen ai.Generator, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithSettings(t, gen, Settings{}, opts...)
}

func newFixtureWithSettings(t *testing.T, gen ai.Generator, settings Settings, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{repo: repository.NewMemoryRepo(), runs: runs.NewMemoryStore()}
	if fg, ok := gen.(*fakeGen); ok {
		f.gen = fg
	}
	guard := quota.NewGuard(quota.UsageFunc(func(context.Context, string, time.Time) (brew.Usage, error) {
		return f.usage, nil
	}), 50, 10)
	opts = append([]Option{WithRunStore(f.runs)}, opts...)
	f.orch = New(gen, f.repo, f.repo, guard, settings, opts...)
	return f
}

// stallingGen never answers the stages listed in stall; the call only ends
// when its context does.
type stallingGen struct {
	stall map[string]bool
}

func (g stallingGen) Generate(ctx context.Context, req ai.Request) (string, error) {
	stage := "slide"
	if req.System == outlineSystem {
		stage = "outline"
	}
	if g.stall[stage] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if stage == "outline" {
		return q3Outline, nil
	}
	return `{"title":"ok","content":"- fine","layout":"content"}`, nil
}

func baseRequest() Request {
	return Request{WorkspaceID: "ws-1", UserID: "u-1", PlanID: "cappuccino", Topic: "Quarterly sales review"}
}

func requireSingleTerminalLast(t *testing.T, evs []events.Event) {
	t.Helper()
	require.NotEmpty(t, evs)
	terminals := 0
	for _, e := range evs {
		if events.IsTerminal(e) {
			terminals++
		}
	}
	require.Equal(t, 1, terminals)
	require.True(t, events.IsTerminal(evs[len(evs)-1]))
}

func TestRunQuarterlyReviewScenario(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return "```json\n" + q3Outline + "\n```", nil }}
	f := newFixture(t, gen)
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, PhaseCompleted, res.Phase)

	require.Equal(t, []events.Type{
		events.TypeStart,
		events.TypeOutlineStart,
		events.TypeOutlineComplete,
		events.TypeSlideStart,
		events.TypeSlideGenerated,
		events.TypeSlideGenerated,
		events.TypeSlidesComplete,
		events.TypeComplete,
	}, rec.Types())

	oc := rec.Events[2].(events.OutlineComplete)
	require.Equal(t, 2, oc.SlideCount)
	require.Equal(t, "Q3 Review", oc.Outline.Title)

	for i, idx := range []int{4, 5} {
		sg := rec.Events[idx].(events.SlideGenerated)
		require.Equal(t, i+1, sg.SlideNumber)
		require.Equal(t, i+1, sg.Slide.Number)
		require.Equal(t, 2, sg.TotalSlides)
		require.InDelta(t, float64(i+1)/2*100, sg.Progress, 0.001)
	}
	sc := rec.Events[6].(events.SlidesComplete)
	require.Equal(t, 2, sc.SlideCount)

	done := rec.Events[7].(events.Complete)
	require.Equal(t, 2, done.Presentation.SlideCount)
	require.Equal(t, "Q3 Review", done.Presentation.Title)
	require.NotNil(t, done.Sources)

	p, err := f.repo.GetPresentation(context.Background(), "ws-1", done.Presentation.ID)
	require.NoError(t, err)
	require.Equal(t, sc.SlideCount, p.SlideCount)
	require.Len(t, p.Slides, 2)
	require.Equal(t, oc.Outline.Title, p.Title)
	require.Equal(t, brew.PresentationStatusDraft, p.Status)
	require.Contains(t, p.Slides[0].ContentHTML, "<li>body 1</li>")

	rr, err := f.runs.Load(context.Background(), "ws-1", res.RunID)
	require.NoError(t, err)
	require.Equal(t, runs.StatusCompleted, rr.Status)
	require.Equal(t, p.ID, rr.PresentationID)
	require.NotNil(t, rr.FinishedAt)

	// one outline call then one call per slide, in order
	require.Equal(t, 3, gen.calls())
	require.Equal(t, 2048, gen.requests[0].MaxTokens)
	require.Contains(t, gen.requests[1].Prompt, "Title: Intro")
	require.Contains(t, gen.requests[2].Prompt, "Title: Numbers")
	require.Equal(t, 1024, gen.requests[2].MaxTokens)
}

func TestRunRefusalOutlineFails(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return "Sorry, I can't help with that", nil }}
	f := newFixture(t, gen)
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, ErrOutlineInvalid))
	require.Equal(t, PhaseFailed, res.Phase)

	require.Equal(t, []events.Type{events.TypeStart, events.TypeOutlineStart, events.TypeError}, rec.Types())
	requireSingleTerminalLast(t, rec.Events)

	u, err := f.repo.MonthlyUsage(context.Background(), "ws-1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 0, u.Presentations)
	require.Equal(t, 1, gen.calls())
}

func TestRunOutlineMissingSlidesIsFatal(t *testing.T) {
	for _, body := range []string{`{"title":"T"}`, `{"title":"T","slides":[]}`, `{"slides":[{"title":"x"}]}`, `not json {`} {
		gen := &fakeGen{outline: func() (string, error) { return body, nil }}
		f := newFixture(t, gen)
		rec := &events.Recorder{}
		_, err := f.orch.Start(context.Background(), baseRequest(), rec)
		require.NoError(t, err)
		for _, e := range rec.Events {
			require.NotEqual(t, events.TypeSlideStart, e.Type(), body)
		}
		require.Equal(t, events.TypeError, rec.Events[len(rec.Events)-1].Type(), body)
	}
}

func TestRunOutlineProviderErrorIsFatal(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return "", context.DeadlineExceeded }}
	f := newFixture(t, gen)
	rec := &events.Recorder{}
	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, errOutlineCall))
	last := rec.Events[len(rec.Events)-1].(events.Error)
	require.Equal(t, "Failed to generate outline", last.Message)
}

func TestRunSlideFailureBecomesPlaceholder(t *testing.T) {
	gen := &fakeGen{
		outline: func() (string, error) { return q3Outline, nil },
		slide: func(n int) (string, error) {
			if n == 1 {
				return "", errors.New("provider 500")
			}
			return `{"title":"Numbers","content":["C1","C2"],"layout":"sideways"}`, nil
		},
	}
	f := newFixture(t, gen)
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Placeholders)

	var generated []events.SlideGenerated
	for _, e := range rec.Events {
		if sg, ok := e.(events.SlideGenerated); ok {
			generated = append(generated, sg)
		}
	}
	require.Len(t, generated, 2)

	ph := generated[0].Slide
	require.True(t, ph.Placeholder)
	require.Equal(t, 1, ph.Number)
	require.Equal(t, "Intro", ph.Title)
	require.Equal(t, "- A\n- B", ph.Content)
	require.Equal(t, "content", ph.Layout)

	ok := generated[1].Slide
	require.False(t, ok.Placeholder)
	require.Equal(t, "- C1\n- C2", ok.Content)
	require.Equal(t, "content", ok.Layout)

	sc := rec.Events[len(rec.Events)-2].(events.SlidesComplete)
	require.Equal(t, 2, sc.SlideCount)
	requireSingleTerminalLast(t, rec.Events)
}

func TestRunMalformedSlideBecomesPlaceholder(t *testing.T) {
	gen := &fakeGen{
		outline: func() (string, error) { return q3Outline, nil },
		slide:   func(n int) (string, error) { return "I refuse", nil },
	}
	f := newFixture(t, gen)
	rec := &events.Recorder{}
	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Placeholders)
	require.Equal(t, events.TypeComplete, rec.Events[len(rec.Events)-1].Type())
}

func TestRunResearchStreamsSources(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	search := fakeSearch{resp: &research.Response{Query: "Quarterly sales review", Results: []research.Source{
		{URL: "https://a.example", Title: "A", Snippet: "sa"},
		{URL: "https://b.example", Title: "B", Snippet: "sb"},
	}}}
	f := newFixture(t, gen, WithSearcher(search))
	req := baseRequest()
	req.EnableResearch = true
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), req, rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	types := rec.Types()
	require.Equal(t, []events.Type{
		events.TypeStart,
		events.TypeResearchStart,
		events.TypeResearchSource,
		events.TypeResearchSource,
		events.TypeResearchComplete,
		events.TypeOutlineStart,
	}, types[:6])
	require.Equal(t, "https://a.example", rec.Events[2].(events.ResearchSource).URL)
	require.Equal(t, "https://b.example", rec.Events[3].(events.ResearchSource).URL)
	require.Equal(t, 2, rec.Events[4].(events.ResearchComplete).SourceCount)

	require.Contains(t, gen.requests[0].Prompt, "Research Context:")
	require.Contains(t, gen.requests[0].Prompt, "### Result 1: A")

	done := rec.Events[len(rec.Events)-1].(events.Complete)
	require.Equal(t, []events.SourceRef{{URL: "https://a.example", Title: "A"}, {URL: "https://b.example", Title: "B"}}, done.Sources)
}

func TestRunResearchFailureIsAbsorbed(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	f := newFixture(t, gen, WithSearcher(fakeSearch{err: research.ErrTimeout}))
	req := baseRequest()
	req.EnableResearch = true
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), req, rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	types := rec.Types()
	require.Equal(t, events.TypeResearchError, types[2])
	require.Equal(t, events.TypeOutlineStart, types[3])
	require.Equal(t, events.TypeComplete, types[len(types)-1])
	require.NotContains(t, gen.requests[0].Prompt, "Research Context:")
}

func TestRunQuotaRejectionMakesNoCalls(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	f := newFixture(t, gen)
	f.usage = brew.Usage{Slides: 445}
	rec := &events.Recorder{}

	_, err := f.orch.Start(context.Background(), baseRequest(), rec)
	var rej *quota.Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, 450, rej.Limit)
	require.Empty(t, rec.Events)
	require.Equal(t, 0, gen.calls())
}

func TestPrepareRejectsForeignProjectAndBrand(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	f := newFixture(t, gen)
	f.repo.AddProject("ws-1", "proj-1")
	f.repo.AddProject("ws-2", "proj-2")
	f.repo.AddBrand("ws-2", "brand-2")

	cases := []struct {
		mutate func(*Request)
		kind   string
	}{
		{func(r *Request) { r.ProjectID = "proj-2" }, "Project"},
		{func(r *Request) { r.ProjectID = "missing" }, "Project"},
		{func(r *Request) { r.BrandID = "brand-2" }, "Brand"},
		{func(r *Request) { r.Brand = &brew.Brand{ID: "brand-2", Name: "Other"} }, "Brand"},
	}
	for i, tc := range cases {
		req := baseRequest()
		tc.mutate(&req)
		rec := &events.Recorder{}
		_, err := f.orch.Start(context.Background(), req, rec)
		var denied *repository.AccessError
		require.True(t, errors.As(err, &denied), "case %d: %v", i, err)
		require.Equal(t, tc.kind, denied.Kind)
		require.Equal(t, tc.kind+" not found or access denied", err.Error())
		require.Empty(t, rec.Events)
	}
	require.Equal(t, 0, gen.calls())

	req := baseRequest()
	req.ProjectID = "proj-1"
	res, err := f.orch.Start(context.Background(), req, &events.Recorder{})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	p, err := f.repo.GetPresentation(context.Background(), "ws-1", res.PresentationID)
	require.NoError(t, err)
	require.Equal(t, "proj-1", p.ProjectID)
}

func TestRunOutlineTimeoutIsFatal(t *testing.T) {
	f := newFixtureWithSettings(t, stallingGen{stall: map[string]bool{"outline": true}}, Settings{OutlineTimeout: 50 * time.Millisecond})
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, errOutlineCall))
	require.ErrorContains(t, res.Err, context.DeadlineExceeded.Error())
	require.Equal(t, PhaseFailed, res.Phase)
	require.NotContains(t, rec.Types(), events.TypeSlideStart)
	require.Equal(t, events.TypeError, rec.Types()[len(rec.Events)-1])
	requireSingleTerminalLast(t, rec.Events)
}

func TestRunSlideTimeoutBecomesPlaceholder(t *testing.T) {
	f := newFixtureWithSettings(t, stallingGen{stall: map[string]bool{"slide": true}}, Settings{SlideTimeout: 50 * time.Millisecond})
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, PhaseCompleted, res.Phase)
	require.Equal(t, 2, res.SlideCount)
	require.Equal(t, 2, res.Placeholders)
	require.Equal(t, events.TypeComplete, rec.Types()[len(rec.Events)-1])
	requireSingleTerminalLast(t, rec.Events)
}

func TestPrepareValidation(t *testing.T) {
	f := newFixture(t, &fakeGen{})
	cases := []Request{
		{WorkspaceID: "ws-1", UserID: "u-1"},
		{UserID: "u-1", Topic: "x"},
		{WorkspaceID: "ws-1", UserID: "u-1", Topic: strings.Repeat("a", 501)},
		{WorkspaceID: "ws-1", UserID: "u-1", Plan: json.RawMessage(`{"title":`)},
		{WorkspaceID: "ws-1", UserID: "u-1", Plan: json.RawMessage(`"` + strings.Repeat("a", 10001) + `"`)},
	}
	for i, req := range cases {
		_, err := f.orch.Prepare(context.Background(), req)
		require.True(t, errors.Is(err, ErrInvalidRequest), "case %d: %v", i, err)
	}
}

func TestRunTruncatesToPlanCapacity(t *testing.T) {
	slides := make([]string, 30)
	for i := range slides {
		slides[i] = fmt.Sprintf(`{"title":"S%d","keyPoints":[]}`, i+1)
	}
	big := `{"title":"Big","slides":[` + strings.Join(slides, ",") + `]}`
	gen := &fakeGen{outline: func() (string, error) { return big, nil }}
	f := newFixture(t, gen)
	f.usage = brew.Usage{Slides: 430} // cappuccino: 20 remaining
	rec := &events.Recorder{}

	res, err := f.orch.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, 20, res.SlideCount)
	oc := rec.Events[2].(events.OutlineComplete)
	require.Equal(t, 20, oc.SlideCount)
	require.Len(t, oc.Outline.Slides, 20)
}

func TestRunPersistFailureEmitsError(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	repo := repository.NewMemoryRepo()
	guard := quota.NewGuard(repo, 50, 10)
	o := New(gen, repo, failingPresentations{}, guard, Settings{})
	rec := &events.Recorder{}

	res, err := o.Start(context.Background(), baseRequest(), rec)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, errPersist))
	require.Equal(t, PhaseFailed, res.Phase)
	types := rec.Types()
	require.Equal(t, events.TypeSlidesComplete, types[len(types)-2])
	require.Equal(t, events.Error{Message: "Failed to save presentation"}, rec.Events[len(rec.Events)-1])
	requireSingleTerminalLast(t, rec.Events)
}

func TestRunClientDisconnectStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &fakeGen{
		outline: func() (string, error) { return q3Outline, nil },
		slide: func(n int) (string, error) {
			if n == 1 {
				cancel()
			}
			return fmt.Sprintf(`{"title":"S%d","content":"x"}`, n), nil
		},
	}
	f := newFixture(t, gen)
	rec := &events.Recorder{}

	res, err := f.orch.Start(ctx, baseRequest(), rec)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, errAbandoned))
	require.Equal(t, PhaseAbandoned, res.Phase)

	// the in-flight call for slide 1 finished, nothing after it was sent or requested
	require.Equal(t, 2, gen.calls())
	require.Equal(t, events.TypeSlideStart, rec.Events[len(rec.Events)-1].Type())
	for _, e := range rec.Events {
		require.False(t, events.IsTerminal(e))
	}
	u, err := f.repo.MonthlyUsage(context.Background(), "ws-1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 0, u.Presentations)

	rr, err := f.runs.Load(context.Background(), "ws-1", res.RunID)
	require.NoError(t, err)
	require.Equal(t, runs.StatusAbandoned, rr.Status)
}

func TestRunSinkErrorStopsRun(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	f := newFixture(t, gen)
	sent := 0
	sink := events.SinkFunc(func(e events.Event) error {
		if e.Type() == events.TypeOutlineComplete {
			return errors.New("broken pipe")
		}
		sent++
		return nil
	})

	res, err := f.orch.Start(context.Background(), baseRequest(), sink)
	require.NoError(t, err)
	require.True(t, errors.Is(res.Err, errAbandoned))
	require.Equal(t, 2, sent)
	require.Equal(t, 1, gen.calls())
}

func seedDraft(t *testing.T, repo *repository.MemoryRepo, outline *brew.Outline) *brew.OutlineDraft {
	t.Helper()
	d := &brew.OutlineDraft{
		WorkspaceID: "ws-1",
		CreatedBy:   "u-1",
		Topic:       "Coffee origins",
		Outline:     outline,
		CurrentStep: brew.StepOutlineEditing,
		BrandID:     "brand-9",
		Theme:       &brew.ThemeStyle{Colors: map[string]string{"primary": "#6F4E37"}},
	}
	require.NoError(t, repo.CreateDraft(context.Background(), d))
	repo.AddBrand("ws-1", "brand-9")
	return d
}

func TestRunFromDraftCompletesAndLinks(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) {
		t.Fatal("outline must come from the draft")
		return "", nil
	}}
	f := newFixture(t, gen)
	d := seedDraft(t, f.repo, &brew.Outline{Title: "", Summary: "beans", Slides: []brew.OutlineSlide{{Title: "Ethiopia"}, {Title: "Colombia"}, {Title: "Brazil"}}})

	rec := &events.Recorder{}
	res, err := f.orch.Start(context.Background(), Request{WorkspaceID: "ws-1", UserID: "u-1", PlanID: "americano", DraftID: d.ID, EnableResearch: true}, rec)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	require.NotContains(t, rec.Types(), events.TypeResearchStart)
	oc := rec.Events[2].(events.OutlineComplete)
	require.Equal(t, 3, oc.SlideCount)
	require.Equal(t, 2, oc.Outline.Slides[1].SlideNumber)

	got, err := f.repo.GetDraft(context.Background(), "ws-1", d.ID)
	require.NoError(t, err)
	require.Equal(t, brew.DraftStatusCompleted, got.Status)
	require.Equal(t, res.PresentationID, got.PresentationID)
	require.NotNil(t, got.CompletedAt)

	p, err := f.repo.GetPresentation(context.Background(), "ws-1", res.PresentationID)
	require.NoError(t, err)
	require.Equal(t, "Coffee origins", p.Title)
	require.Equal(t, "beans", p.Description)
	require.Equal(t, "brand-9", p.BrandID)
	require.Equal(t, d.ID, p.OutlineDraftID)
	require.Equal(t, "#6F4E37", p.Slides[0].Theme.Colors["primary"])
	require.Contains(t, gen.requests[0].Prompt, "Color primary: #6F4E37")
}

func TestRunFromDraftFailureRollsBack(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	repo := repository.NewMemoryRepo()
	guard := quota.NewGuard(repo, 50, 10)
	o := New(gen, repo, failingPresentations{}, guard, Settings{})
	d := seedDraft(t, repo, &brew.Outline{Title: "T", Slides: []brew.OutlineSlide{{Title: "One"}}})

	run, err := o.Prepare(context.Background(), Request{WorkspaceID: "ws-1", UserID: "u-1", PlanID: "americano", DraftID: d.ID})
	require.NoError(t, err)

	claimed, err := repo.GetDraft(context.Background(), "ws-1", d.ID)
	require.NoError(t, err)
	require.Equal(t, brew.DraftStatusGenerating, claimed.Status)
	require.Equal(t, brew.StepGenerating, claimed.CurrentStep)

	// a second run cannot claim a draft that is already generating
	_, err = o.Prepare(context.Background(), Request{WorkspaceID: "ws-1", UserID: "u-1", PlanID: "americano", DraftID: d.ID})
	require.True(t, errors.Is(err, ErrDraftBusy))

	res := run.Execute(context.Background(), &events.Recorder{})
	require.Error(t, res.Err)

	after, err := repo.GetDraft(context.Background(), "ws-1", d.ID)
	require.NoError(t, err)
	require.Equal(t, brew.DraftStatusDraft, after.Status)
	require.Equal(t, brew.StepOutlineEditing, after.CurrentStep)
}

func TestPrepareDraftWithoutOutline(t *testing.T) {
	f := newFixture(t, &fakeGen{})
	d := seedDraft(t, f.repo, nil)
	_, err := f.orch.Prepare(context.Background(), Request{WorkspaceID: "ws-1", UserID: "u-1", DraftID: d.ID})
	require.True(t, errors.Is(err, ErrNoOutline))

	_, err = f.orch.Prepare(context.Background(), Request{WorkspaceID: "ws-1", UserID: "u-1", DraftID: "nope"})
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestExecuteOnlyOnce(t *testing.T) {
	gen := &fakeGen{outline: func() (string, error) { return q3Outline, nil }}
	f := newFixture(t, gen)
	run, err := f.orch.Prepare(context.Background(), baseRequest())
	require.NoError(t, err)
	require.NoError(t, run.Execute(context.Background(), &events.Recorder{}).Err)
	require.Error(t, run.Execute(context.Background(), &events.Recorder{}).Err)
}
