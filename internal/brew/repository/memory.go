package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidecoffee/brew-service/internal/brew"
)

// MemoryRepo is an in-memory store used when no MongoDB URI is configured and
// in unit tests. Values are copied in and out so callers never share state
// with the store.
type MemoryRepo struct {
	mu            sync.RWMutex
	drafts        map[string]brew.OutlineDraft
	presentations map[string]brew.Presentation
	projects      map[string]string // id -> workspace
	brands        map[string]string // id -> workspace
	now           func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		drafts:        make(map[string]brew.OutlineDraft),
		presentations: make(map[string]brew.Presentation),
		projects:      make(map[string]string),
		brands:        make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepo) CreateDraft(_ context.Context, d *brew.OutlineDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = brew.DraftStatusDraft
	}
	d.CreatedAt = m.now()
	d.UpdatedAt = d.CreatedAt
	m.drafts[d.ID] = *d
	return nil
}

func (m *MemoryRepo) GetDraft(_ context.Context, workspaceID, id string) (*brew.OutlineDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryRepo) ListDrafts(_ context.Context, workspaceID string) ([]*brew.OutlineDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*brew.OutlineDraft{}
	for _, d := range m.drafts {
		if d.WorkspaceID != workspaceID || d.Deleted() {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryRepo) PatchDraft(_ context.Context, workspaceID, id string, p DraftPatch) (*brew.OutlineDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return nil, ErrNotFound
	}
	if !editable(d.Status) {
		return nil, ErrConflict
	}
	p.apply(&d)
	d.UpdatedAt = m.now()
	m.drafts[id] = d
	return &d, nil
}

func (m *MemoryRepo) SoftDeleteDraft(_ context.Context, workspaceID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return ErrNotFound
	}
	now := m.now()
	d.DeletedAt = &now
	d.UpdatedAt = now
	m.drafts[id] = d
	return nil
}

func (m *MemoryRepo) TransitionDraft(_ context.Context, workspaceID, id string, t Transition) (*brew.OutlineDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return nil, ErrNotFound
	}
	if !d.Status.CanTransitionTo(t.To) {
		return nil, ErrConflict
	}
	if t.At.IsZero() {
		t.At = m.now()
	}
	t.apply(&d)
	m.drafts[id] = d
	return &d, nil
}

func (m *MemoryRepo) CreatePresentation(_ context.Context, p *brew.Presentation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	p.UpdatedAt = p.CreatedAt
	cp := *p
	cp.Slides = append([]brew.Slide(nil), p.Slides...)
	m.presentations[p.ID] = cp
	return nil
}

func (m *MemoryRepo) GetPresentation(_ context.Context, workspaceID, id string) (*brew.Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presentations[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	p.Slides = append([]brew.Slide(nil), p.Slides...)
	return &p, nil
}

func (m *MemoryRepo) MonthlyUsage(_ context.Context, workspaceID string, since time.Time) (brew.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var u brew.Usage
	for _, p := range m.presentations {
		if p.WorkspaceID != workspaceID || p.CreatedAt.Before(since) {
			continue
		}
		u.Presentations++
		u.Slides += p.SlideCount
	}
	return u, nil
}

// AddProject registers a project as belonging to workspaceID.
func (m *MemoryRepo) AddProject(workspaceID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = workspaceID
}

// AddBrand registers a brand as belonging to workspaceID.
func (m *MemoryRepo) AddBrand(workspaceID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brands[id] = workspaceID
}

func (m *MemoryRepo) ProjectOwned(_ context.Context, workspaceID, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.projects[id]
	return ok && ws == workspaceID, nil
}

func (m *MemoryRepo) BrandOwned(_ context.Context, workspaceID, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.brands[id]
	return ok && ws == workspaceID, nil
}
