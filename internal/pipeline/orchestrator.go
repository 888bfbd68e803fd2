// Package pipeline runs the streaming presentation generation: quota check,
// optional research, outline, sequential slide generation and persistence,
// reported as an ordered stream of events.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/config"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/quota"
	"github.com/slidecoffee/brew-service/internal/research"
	"github.com/slidecoffee/brew-service/internal/runs"
	"github.com/slidecoffee/brew-service/pkg/logger"
	"github.com/slidecoffee/brew-service/pkg/metrics"
)

// DraftStore is the slice of the draft repository the orchestrator needs.
type DraftStore interface {
	repository.Ownership
	GetDraft(ctx context.Context, workspaceID, id string) (*brew.OutlineDraft, error)
	TransitionDraft(ctx context.Context, workspaceID, id string, t repository.Transition) (*brew.OutlineDraft, error)
}

// PresentationStore persists finished presentations.
type PresentationStore interface {
	CreatePresentation(ctx context.Context, p *brew.Presentation) error
}

var (
	ErrInvalidRequest = errors.New("invalid generation request")
	ErrNoOutline      = errors.New("no outline found in draft")
	ErrDraftBusy      = errors.New("draft is not ready for generation")
)

// Settings tunes a pipeline instance.
type Settings struct {
	MaxSlides        int
	ResearchResults  int
	Temperature      float64
	OutlineMaxTokens int
	SlideMaxTokens   int
	OutlineTimeout   time.Duration
	SlideTimeout     time.Duration
	SearchTimeout    time.Duration
	PersistTimeout   time.Duration
	MaxTopicLength   int
	MaxPlanBytes     int
}

// SettingsFromConfig maps service configuration onto pipeline settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxSlides:        cfg.Generation.MaxSlides,
		ResearchResults:  cfg.Search.MaxResults,
		Temperature:      cfg.AI.Temperature,
		OutlineMaxTokens: cfg.AI.OutlineMaxTokens,
		SlideMaxTokens:   cfg.AI.SlideMaxTokens,
		OutlineTimeout:   cfg.AI.OutlineTimeout,
		SlideTimeout:     cfg.AI.SlideTimeout,
		SearchTimeout:    cfg.Search.Timeout,
		PersistTimeout:   10 * time.Second,
		MaxTopicLength:   cfg.Generation.MaxTopicLength,
		MaxPlanBytes:     cfg.Generation.MaxPlanBytes,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxSlides <= 0 {
		s.MaxSlides = 50
	}
	if s.ResearchResults <= 0 {
		s.ResearchResults = 5
	}
	if s.OutlineMaxTokens <= 0 {
		s.OutlineMaxTokens = 2048
	}
	if s.SlideMaxTokens <= 0 {
		s.SlideMaxTokens = 1024
	}
	if s.OutlineTimeout <= 0 {
		s.OutlineTimeout = 60 * time.Second
	}
	if s.SlideTimeout <= 0 {
		s.SlideTimeout = 45 * time.Second
	}
	if s.SearchTimeout <= 0 {
		s.SearchTimeout = 10 * time.Second
	}
	if s.PersistTimeout <= 0 {
		s.PersistTimeout = 10 * time.Second
	}
	if s.MaxTopicLength <= 0 {
		s.MaxTopicLength = 500
	}
	if s.MaxPlanBytes <= 0 {
		s.MaxPlanBytes = 10000
	}
	return s
}

// Request starts a run. Either Topic, Plan or DraftID must be set.
type Request struct {
	WorkspaceID    string
	UserID         string
	PlanID         string
	ProjectID      string
	Topic          string
	Plan           json.RawMessage
	Brand          *brew.Brand
	BrandID        string
	EnableResearch bool
	DraftID        string
	// SlideCount is the requested deck size when no plan or draft fixes it.
	SlideCount int
}

// Orchestrator wires the stages to their collaborators.
type Orchestrator struct {
	gen           ai.Generator
	search        research.Searcher
	drafts        DraftStore
	presentations PresentationStore
	guard         *quota.Guard
	runs          runs.Store
	journal       *events.Journal
	settings      Settings
	now           func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithRunStore records run metadata.
func WithRunStore(s runs.Store) Option { return func(o *Orchestrator) { o.runs = s } }

// WithJournal copies every emitted event into a Redis stream.
func WithJournal(j *events.Journal) Option { return func(o *Orchestrator) { o.journal = j } }

// WithSearcher enables the research stage.
func WithSearcher(s research.Searcher) Option { return func(o *Orchestrator) { o.search = s } }

func New(gen ai.Generator, drafts DraftStore, presentations PresentationStore, guard *quota.Guard, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:           gen,
		drafts:        drafts,
		presentations: presentations,
		guard:         guard,
		settings:      settings.withDefaults(),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is a prepared generation that has passed every precondition.
type Run struct {
	ID       string
	o        *Orchestrator
	req      Request
	draft    *brew.OutlineDraft
	decision *quota.Decision
	machine  *machine
	log      *slog.Logger
	record   *runs.Record
	executed bool
}

// Prepare validates req, loads the draft, checks project and brand ownership,
// checks quota and claims the draft. Errors returned here are precondition
// failures: no event stream has been opened and no provider call made. A
// *quota.Rejection reports exceeded limits and a *repository.AccessError a
// project or brand outside the workspace.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Run, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if err := o.validate(req); err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString(), o: o, req: req, machine: newMachine()}
	run.log = logger.With("run_id", run.ID, "workspace_id", req.WorkspaceID)

	estimate := planEstimate(req.Plan)
	if estimate == 0 {
		estimate = req.SlideCount
	}
	if req.DraftID != "" {
		d, err := o.drafts.GetDraft(ctx, req.WorkspaceID, req.DraftID)
		if err != nil {
			return nil, err
		}
		if d.Outline == nil || len(d.Outline.Slides) == 0 {
			return nil, ErrNoOutline
		}
		run.draft = d
		estimate = len(d.Outline.Slides)
	}
	if estimate > o.settings.MaxSlides {
		estimate = o.settings.MaxSlides
	}

	if err := repository.CheckOwnership(ctx, o.drafts, req.WorkspaceID, run.projectID(), run.brandID()); err != nil {
		return nil, err
	}

	decision, err := o.guard.Check(ctx, req.WorkspaceID, req.PlanID, estimate)
	if err != nil {
		return nil, err
	}
	run.decision = decision

	if run.draft != nil {
		claimed, err := o.drafts.TransitionDraft(ctx, req.WorkspaceID, run.draft.ID, repository.Transition{
			To:          brew.DraftStatusGenerating,
			CurrentStep: brew.StepGenerating,
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, fmt.Errorf("%w: status %s", ErrDraftBusy, run.draft.Status)
			}
			return nil, err
		}
		run.draft = claimed
	}
	if err := run.machine.advance(PhaseQuotaChecked); err != nil {
		return nil, err
	}
	return run, nil
}

func (o *Orchestrator) validate(req Request) error {
	if req.WorkspaceID == "" || req.UserID == "" {
		return fmt.Errorf("%w: missing workspace or user", ErrInvalidRequest)
	}
	if req.Topic == "" && len(req.Plan) == 0 && req.DraftID == "" {
		return fmt.Errorf("%w: topic or presentation plan is required", ErrInvalidRequest)
	}
	if req.SlideCount < 0 {
		return fmt.Errorf("%w: slideCount must not be negative", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(req.Topic) > o.settings.MaxTopicLength {
		return fmt.Errorf("%w: topic must be at most %d characters", ErrInvalidRequest, o.settings.MaxTopicLength)
	}
	if len(req.Plan) > 0 {
		if len(req.Plan) > o.settings.MaxPlanBytes {
			return fmt.Errorf("%w: presentation plan too large (max %d bytes)", ErrInvalidRequest, o.settings.MaxPlanBytes)
		}
		if !json.Valid(req.Plan) {
			return fmt.Errorf("%w: presentation plan is not valid JSON", ErrInvalidRequest)
		}
	}
	return nil
}

// planEstimate reads an expected slide count from a user plan, if it has one.
func planEstimate(plan json.RawMessage) int {
	if len(plan) == 0 {
		return 0
	}
	var p struct {
		SlideCount int               `json:"slideCount"`
		Slides     []json.RawMessage `json:"slides"`
	}
	if err := json.Unmarshal(plan, &p); err != nil {
		return 0
	}
	if len(p.Slides) > 0 {
		return len(p.Slides)
	}
	return p.SlideCount
}

// Start prepares and executes a run in one call.
func (o *Orchestrator) Start(ctx context.Context, req Request, sink events.Sink) (*Result, error) {
	run, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	res := run.Execute(ctx, sink)
	return &res, nil
}

// Result summarises an executed run.
type Result struct {
	RunID          string
	Phase          Phase
	PresentationID string
	SlideCount     int
	Placeholders   int
	Err            error
}

// Execute streams the run's events to sink. Cancelling ctx, or a failing
// sink, stops event delivery: an in-flight provider call is allowed to
// finish, nothing further is generated or persisted, and a claimed draft is
// returned to draft status.
func (r *Run) Execute(ctx context.Context, sink events.Sink) Result {
	if r.executed {
		return Result{RunID: r.ID, Phase: r.machine.current(), Err: errors.New("run already executed")}
	}
	r.executed = true
	o := r.o

	if o.journal != nil {
		sink = events.Tee(sink, o.journal, r.ID)
	}
	em := &emitter{ctx: ctx, sink: sink}
	st := &runState{}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()
	r.saveRecord(runs.StatusRunning, st, nil)
	r.log.Info("generation run started", "draft_id", r.req.DraftID, "research", r.req.EnableResearch, "max_slides", r.maxSlides())

	err := r.execute(em, st)
	return r.finish(em, st, err)
}

type runState struct {
	sources         []research.Source
	researchContext string
	outline         brew.Outline
	slides          []brew.Slide
	placeholders    int
	presentation    *brew.Presentation
}

var errAbandoned = errors.New("client disconnected")

func (r *Run) execute(em *emitter, st *runState) error {
	if !em.emit(events.Start{Message: "Starting presentation generation..."}) {
		return errAbandoned
	}

	if r.req.EnableResearch && r.req.Topic != "" && r.draft == nil && r.o.search != nil {
		if err := r.machine.advance(PhaseResearching); err != nil {
			return err
		}
		if !r.research(em, st) {
			return errAbandoned
		}
	}

	if err := r.machine.advance(PhaseOutlining); err != nil {
		return err
	}
	if err := r.outline(em, st); err != nil {
		return err
	}

	if err := r.machine.advance(PhaseGeneratingSlides); err != nil {
		return err
	}
	if !r.generateSlides(em, st) {
		return errAbandoned
	}

	if err := r.machine.advance(PhasePersisting); err != nil {
		return err
	}
	return r.persist(em, st)
}

func (r *Run) finish(em *emitter, st *runState, err error) Result {
	res := Result{RunID: r.ID, SlideCount: len(st.slides), Placeholders: st.placeholders}
	if st.presentation != nil {
		res.PresentationID = st.presentation.ID
	}

	switch {
	case err == nil:
		_ = r.machine.advance(PhaseCompleted)
		metrics.RunsTotal.WithLabelValues("completed").Inc()
		r.saveRecord(runs.StatusCompleted, st, nil)
		r.log.Info("generation run completed", "presentation_id", res.PresentationID, "slides", res.SlideCount, "placeholders", res.Placeholders)
	case errors.Is(err, errAbandoned) || em.gone():
		_ = r.machine.advance(PhaseAbandoned)
		metrics.RunsTotal.WithLabelValues("abandoned").Inc()
		r.rollbackDraft()
		r.saveRecord(runs.StatusAbandoned, st, errAbandoned)
		r.log.Warn("generation run abandoned by client", "phase", r.machine.current())
		err = errAbandoned
	default:
		if advErr := r.machine.advance(PhaseFailed); advErr != nil {
			r.log.Error("unexpected failure phase", "error", advErr)
			r.machine.phase = PhaseFailed
		}
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		em.emit(events.Error{Message: userMessage(err)})
		r.rollbackDraft()
		r.saveRecord(runs.StatusFailed, st, err)
		r.log.Error("generation run failed", "error", err)
	}
	res.Phase = r.machine.current()
	res.Err = err
	return res
}

func (r *Run) maxSlides() int {
	limit := r.o.settings.MaxSlides
	if r.decision != nil && r.decision.MaxSlides > 0 && r.decision.MaxSlides < limit {
		limit = r.decision.MaxSlides
	}
	return limit
}

func (r *Run) rollbackDraft() {
	if r.draft == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.o.settings.PersistTimeout)
	defer cancel()
	_, err := r.o.drafts.TransitionDraft(ctx, r.req.WorkspaceID, r.draft.ID, repository.Transition{
		To:          brew.DraftStatusDraft,
		CurrentStep: brew.StepOutlineEditing,
	})
	if err != nil {
		r.log.Warn("could not return draft to draft status", "draft_id", r.draft.ID, "error", err)
	}
}

func (r *Run) saveRecord(status runs.Status, st *runState, err error) {
	if r.o.runs == nil {
		return
	}
	now := r.o.now()
	if r.record == nil {
		r.record = &runs.Record{
			RunID:       r.ID,
			WorkspaceID: r.req.WorkspaceID,
			UserID:      r.req.UserID,
			DraftID:     r.req.DraftID,
			Topic:       r.topic(),
			StartedAt:   now,
		}
	}
	r.record.Status = status
	r.record.Phase = string(r.machine.current())
	r.record.SlideCount = len(st.slides)
	r.record.Placeholders = st.placeholders
	if st.presentation != nil {
		r.record.PresentationID = st.presentation.ID
	}
	if err != nil {
		r.record.Error = err.Error()
	}
	if status != runs.StatusRunning {
		r.record.FinishedAt = &now
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.o.settings.PersistTimeout)
	defer cancel()
	if saveErr := r.o.runs.Save(ctx, r.record); saveErr != nil {
		r.log.Warn("could not save run record", "error", saveErr)
	}
}

// topic is the best human label for the run.
func (r *Run) topic() string {
	if r.req.Topic != "" {
		return r.req.Topic
	}
	if r.draft != nil {
		if r.draft.Topic != "" {
			return r.draft.Topic
		}
		if r.draft.Outline != nil {
			return r.draft.Outline.Title
		}
	}
	if len(r.req.Plan) > 0 {
		var p struct {
			Title string `json:"title"`
		}
		if json.Unmarshal(r.req.Plan, &p) == nil {
			return p.Title
		}
	}
	return ""
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrOutlineInvalid):
		return "Failed to generate outline: the AI response was not a valid outline"
	case errors.Is(err, errOutlineCall):
		return "Failed to generate outline"
	case errors.Is(err, errPersist):
		return "Failed to save presentation"
	}
	return "Generation failed"
}

// emitter enforces the stream contract: events go out in call order, at most
// one terminal event is sent, and nothing is sent after it or after the
// consumer has gone.
type emitter struct {
	ctx    context.Context
	sink   events.Sink
	closed bool
	lost   bool
}

func (e *emitter) emit(ev events.Event) bool {
	if e.closed {
		return false
	}
	if e.ctx.Err() != nil {
		e.closed, e.lost = true, true
		return false
	}
	if err := e.sink.Send(ev); err != nil {
		e.closed, e.lost = true, true
		return false
	}
	if events.IsTerminal(ev) {
		e.closed = true
	}
	return true
}

// gone reports whether the consumer disconnected.
func (e *emitter) gone() bool {
	if !e.closed && e.ctx.Err() != nil {
		e.closed, e.lost = true, true
	}
	return e.lost
}
