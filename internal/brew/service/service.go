// Package service implements the outline-first brew flow: creating outline
// drafts from a topic, pasted content or an uploaded file, and editing them
// before generation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/pipeline"
	"github.com/slidecoffee/brew-service/internal/storage"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("access denied")
	// ErrDraftLocked reports an edit to a draft that is generating or done.
	ErrDraftLocked = errors.New("draft can no longer be edited")
	// ErrOutlineFailed wraps provider and parse failures of outline requests.
	ErrOutlineFailed = errors.New("failed to generate outline")
)

// Store is the persistence surface used by the service.
type Store interface {
	repository.Ownership
	CreateDraft(ctx context.Context, d *brew.OutlineDraft) error
	GetDraft(ctx context.Context, workspaceID, id string) (*brew.OutlineDraft, error)
	ListDrafts(ctx context.Context, workspaceID string) ([]*brew.OutlineDraft, error)
	PatchDraft(ctx context.Context, workspaceID, id string, p repository.DraftPatch) (*brew.OutlineDraft, error)
	SoftDeleteDraft(ctx context.Context, workspaceID, id string) error
	GetPresentation(ctx context.Context, workspaceID, id string) (*brew.Presentation, error)
}

// Caller identifies who acts and in which workspace.
type Caller struct {
	WorkspaceID string
	UserID      string
}

// Settings tunes outline requests.
type Settings struct {
	Temperature      float64
	OutlineMaxTokens int
	AnalyzeMaxTokens int
	Timeout          time.Duration
	MaxSlides        int
	MaxImportBytes   int64
}

func (s Settings) withDefaults() Settings {
	if s.OutlineMaxTokens <= 0 {
		s.OutlineMaxTokens = 2000
	}
	if s.AnalyzeMaxTokens <= 0 {
		s.AnalyzeMaxTokens = 3000
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	if s.MaxSlides <= 0 {
		s.MaxSlides = 50
	}
	if s.MaxImportBytes <= 0 {
		s.MaxImportBytes = 10 << 20
	}
	return s
}

const (
	minTopicLength    = 5
	maxTopicLength    = 500
	defaultSlideCount = 10
	minContentLength  = 50
	maxContentLength  = 50000
	analyzeWindow     = 8000
	sourceKeep        = 10000
)

type Service struct {
	store    Store
	gen      ai.Generator
	objects  storage.ObjectStore
	settings Settings
	now      func() time.Time
}

func New(store Store, gen ai.Generator, objects storage.ObjectStore, settings Settings) *Service {
	return &Service{
		store:    store,
		gen:      gen,
		objects:  objects,
		settings: settings.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateOutline asks the provider for an outline of slideCount slides and
// stores it as a new draft at the outline editing step.
func (s *Service) GenerateOutline(ctx context.Context, c Caller, topic, projectID string, slideCount int) (*brew.OutlineDraft, error) {
	topic = strings.TrimSpace(topic)
	n := utf8.RuneCountInString(topic)
	if n < minTopicLength || n > maxTopicLength {
		return nil, fmt.Errorf("%w: Topic must be between %d and %d characters", ErrInvalidInput, minTopicLength, maxTopicLength)
	}
	if slideCount <= 0 {
		slideCount = defaultSlideCount
	}
	if slideCount > s.settings.MaxSlides {
		slideCount = s.settings.MaxSlides
	}
	if err := repository.CheckOwnership(ctx, s.store, c.WorkspaceID, projectID, ""); err != nil {
		return nil, err
	}

	outline, err := s.requestOutline(ctx, topicOutlinePrompt(topic, slideCount), s.settings.OutlineMaxTokens)
	if err != nil {
		return nil, err
	}
	d := &brew.OutlineDraft{
		WorkspaceID: c.WorkspaceID,
		ProjectID:   projectID,
		CreatedBy:   c.UserID,
		Topic:       topic,
		Outline:     outline,
		SourceType:  brew.SourceTopic,
	}
	if err := s.createDraft(ctx, d); err != nil {
		return nil, err
	}
	logger.Infof("outline generated and saved: draft=%s slides=%d", d.ID, len(outline.Slides))
	return d, nil
}

// AnalyzeOptions steer how pasted content is turned into an outline.
type AnalyzeOptions struct {
	AutoDetectHeadings bool `json:"autoDetectHeadings"`
	CreateTitleSlide   bool `json:"createTitleSlide"`
	SmartFormatting    bool `json:"smartFormatting"`
}

// AnalyzeContent builds a draft outline from pasted text or HTML.
func (s *Service) AnalyzeContent(ctx context.Context, c Caller, content string, opts AnalyzeOptions) (*brew.OutlineDraft, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: Content is required", ErrInvalidInput)
	}
	if looksLikeHTML(content) {
		if ex, err := extractHTML(content); err == nil && ex.Text != "" {
			content = ex.Text
		}
	}
	n := utf8.RuneCountInString(content)
	if n < minContentLength {
		return nil, fmt.Errorf("%w: Content must be at least %d characters", ErrInvalidInput, minContentLength)
	}
	if n > maxContentLength {
		return nil, fmt.Errorf("%w: Content must be less than 50,000 characters", ErrInvalidInput)
	}

	outline, err := s.requestOutline(ctx, analyzePrompt(truncateRunes(content, analyzeWindow), opts), s.settings.AnalyzeMaxTokens)
	if err != nil {
		return nil, err
	}
	d := &brew.OutlineDraft{
		WorkspaceID:   c.WorkspaceID,
		CreatedBy:     c.UserID,
		Topic:         "Pasted: " + outline.Title,
		Outline:       outline,
		SourceType:    brew.SourcePaste,
		SourceContent: truncateRunes(content, sourceKeep),
	}
	if err := s.createDraft(ctx, d); err != nil {
		return nil, err
	}
	logger.Infof("content analyzed, outline draft created: draft=%s slides=%d", d.ID, len(outline.Slides))
	return d, nil
}

func (s *Service) requestOutline(ctx context.Context, prompt string, maxTokens int) (*brew.Outline, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	text, err := s.gen.Generate(ctx, ai.Request{
		System:      draftOutlineSystem,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutlineFailed, err)
	}
	o, err := pipeline.ParseOutline(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutlineFailed, err)
	}
	o, _ = pipeline.TruncateOutline(o, s.settings.MaxSlides)
	return &o, nil
}

func (s *Service) createDraft(ctx context.Context, d *brew.OutlineDraft) error {
	now := s.now()
	d.ID = uuid.NewString()
	d.Status = brew.DraftStatusDraft
	d.CurrentStep = brew.StepOutlineEditing
	d.CreatedAt, d.UpdatedAt = now, now
	if err := s.store.CreateDraft(ctx, d); err != nil {
		return fmt.Errorf("create outline draft: %w", err)
	}
	return nil
}

func (s *Service) GetDraft(ctx context.Context, c Caller, id string) (*brew.OutlineDraft, error) {
	return s.store.GetDraft(ctx, c.WorkspaceID, id)
}

func (s *Service) ListDrafts(ctx context.Context, c Caller) ([]*brew.OutlineDraft, error) {
	return s.store.ListDrafts(ctx, c.WorkspaceID)
}

// UpdateDraft applies step edits. Only the draft's creator may edit it, and
// only while the draft has not entered generation.
func (s *Service) UpdateDraft(ctx context.Context, c Caller, id string, p repository.DraftPatch) (*brew.OutlineDraft, error) {
	d, err := s.owned(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if d.Status != brew.DraftStatusDraft && d.Status != "" {
		return nil, fmt.Errorf("%w: status %s", ErrDraftLocked, d.Status)
	}
	if p.Outline != nil {
		o := pipeline.NormalizeOutline(*p.Outline)
		if len(o.Slides) == 0 {
			return nil, fmt.Errorf("%w: outline must contain at least one slide", ErrInvalidInput)
		}
		p.Outline = &o
	}
	if p.CurrentStep != nil && (*p.CurrentStep < 1 || *p.CurrentStep > brew.StepGenerating) {
		return nil, fmt.Errorf("%w: current_step must be between 1 and %d", ErrInvalidInput, brew.StepGenerating)
	}
	brandID := ""
	if p.BrandID != nil {
		brandID = *p.BrandID
	} else if p.Brand != nil {
		brandID = p.Brand.ID
	}
	if err := repository.CheckOwnership(ctx, s.store, c.WorkspaceID, "", brandID); err != nil {
		return nil, err
	}
	updated, err := s.store.PatchDraft(ctx, c.WorkspaceID, id, p)
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: generation started", ErrDraftLocked)
	}
	return updated, err
}

// DeleteDraft soft deletes a draft owned by the caller.
func (s *Service) DeleteDraft(ctx context.Context, c Caller, id string) error {
	if _, err := s.owned(ctx, c, id); err != nil {
		return err
	}
	return s.store.SoftDeleteDraft(ctx, c.WorkspaceID, id)
}

func (s *Service) owned(ctx context.Context, c Caller, id string) (*brew.OutlineDraft, error) {
	d, err := s.store.GetDraft(ctx, c.WorkspaceID, id)
	if err != nil {
		return nil, err
	}
	if d.CreatedBy != c.UserID {
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *Service) GetPresentation(ctx context.Context, c Caller, id string) (*brew.Presentation, error) {
	return s.store.GetPresentation(ctx, c.WorkspaceID, id)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
