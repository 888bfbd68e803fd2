package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/brew"
)

func TestMemoryRepoDraftCRUD(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	d := &brew.OutlineDraft{WorkspaceID: "ws-1", CreatedBy: "u-1", Topic: "Coffee roasting", CurrentStep: brew.StepOutlineEditing}
	require.NoError(t, r.CreateDraft(ctx, d))
	require.NotEmpty(t, d.ID)
	require.Equal(t, brew.DraftStatusDraft, d.Status)

	got, err := r.GetDraft(ctx, "ws-1", d.ID)
	require.NoError(t, err)
	require.Equal(t, "Coffee roasting", got.Topic)

	_, err = r.GetDraft(ctx, "ws-other", d.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	step := 3
	theme := "theme-1"
	patched, err := r.PatchDraft(ctx, "ws-1", d.ID, DraftPatch{
		CurrentStep: &step,
		ThemeID:     &theme,
		Outline:     &brew.Outline{Title: "Roasting", Slides: []brew.OutlineSlide{{Title: "Beans"}}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, patched.CurrentStep)
	require.Equal(t, "theme-1", patched.ThemeID)
	require.Equal(t, "Roasting", patched.Outline.Title)

	require.NoError(t, r.SoftDeleteDraft(ctx, "ws-1", d.ID))
	_, err = r.GetDraft(ctx, "ws-1", d.ID)
	require.True(t, errors.Is(err, ErrNotFound))
	require.True(t, errors.Is(r.SoftDeleteDraft(ctx, "ws-1", d.ID), ErrNotFound))
}

func TestMemoryRepoListDraftsOrder(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	a := &brew.OutlineDraft{WorkspaceID: "ws-1", Topic: "a"}
	b := &brew.OutlineDraft{WorkspaceID: "ws-1", Topic: "b"}
	c := &brew.OutlineDraft{WorkspaceID: "ws-2", Topic: "c"}
	require.NoError(t, r.CreateDraft(ctx, a))
	require.NoError(t, r.CreateDraft(ctx, b))
	require.NoError(t, r.CreateDraft(ctx, c))

	step := 4
	_, err := r.PatchDraft(ctx, "ws-1", a.ID, DraftPatch{CurrentStep: &step})
	require.NoError(t, err)

	list, err := r.ListDrafts(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Topic)
	require.Equal(t, "b", list[1].Topic)
}

func TestMemoryRepoTransitions(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	d := &brew.OutlineDraft{WorkspaceID: "ws-1", Topic: "t"}
	require.NoError(t, r.CreateDraft(ctx, d))

	got, err := r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusGenerating, CurrentStep: brew.StepGenerating})
	require.NoError(t, err)
	require.Equal(t, brew.DraftStatusGenerating, got.Status)
	require.Equal(t, brew.StepGenerating, got.CurrentStep)

	_, err = r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusGenerating})
	require.True(t, errors.Is(err, ErrConflict))

	got, err = r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusCompleted, PresentationID: "p-1"})
	require.NoError(t, err)
	require.Equal(t, "p-1", got.PresentationID)
	require.NotNil(t, got.CompletedAt)

	_, err = r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusDraft})
	require.True(t, errors.Is(err, ErrConflict))

	_, err = r.TransitionDraft(ctx, "ws-1", "missing", Transition{To: brew.DraftStatusGenerating})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryRepoPatchRequiresEditableDraft(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	d := &brew.OutlineDraft{WorkspaceID: "ws-1", Topic: "t"}
	require.NoError(t, r.CreateDraft(ctx, d))
	_, err := r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusGenerating})
	require.NoError(t, err)

	step := 2
	_, err = r.PatchDraft(ctx, "ws-1", d.ID, DraftPatch{CurrentStep: &step})
	require.True(t, errors.Is(err, ErrConflict))

	_, err = r.TransitionDraft(ctx, "ws-1", d.ID, Transition{To: brew.DraftStatusDraft})
	require.NoError(t, err)
	got, err := r.PatchDraft(ctx, "ws-1", d.ID, DraftPatch{CurrentStep: &step})
	require.NoError(t, err)
	require.Equal(t, 2, got.CurrentStep)
}

func TestMemoryRepoOwnership(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	r.AddProject("ws-1", "proj-1")
	r.AddBrand("ws-2", "brand-2")

	require.NoError(t, CheckOwnership(ctx, r, "ws-1", "proj-1", ""))
	require.NoError(t, CheckOwnership(ctx, r, "ws-1", "", ""))
	require.NoError(t, CheckOwnership(ctx, r, "ws-2", "", "brand-2"))

	var denied *AccessError
	require.True(t, errors.As(CheckOwnership(ctx, r, "ws-2", "proj-1", ""), &denied))
	require.Equal(t, "Project", denied.Kind)
	require.True(t, errors.As(CheckOwnership(ctx, r, "ws-1", "proj-1", "brand-2"), &denied))
	require.Equal(t, "Brand", denied.Kind)
	require.Equal(t, "Brand not found or access denied", denied.Error())
}

func TestMemoryRepoPresentationsAndUsage(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	since := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

	old := &brew.Presentation{WorkspaceID: "ws-1", SlideCount: 9, CreatedAt: since.Add(-time.Hour)}
	p1 := &brew.Presentation{WorkspaceID: "ws-1", Title: "One", Slides: []brew.Slide{{Number: 1}, {Number: 2}}, SlideCount: 2, CreatedAt: since.Add(time.Hour)}
	p2 := &brew.Presentation{WorkspaceID: "ws-1", SlideCount: 5, CreatedAt: since.Add(2 * time.Hour)}
	other := &brew.Presentation{WorkspaceID: "ws-2", SlideCount: 7, CreatedAt: since.Add(time.Hour)}
	for _, p := range []*brew.Presentation{old, p1, p2, other} {
		require.NoError(t, r.CreatePresentation(ctx, p))
		require.NotEmpty(t, p.ID)
	}

	got, err := r.GetPresentation(ctx, "ws-1", p1.ID)
	require.NoError(t, err)
	require.Equal(t, "One", got.Title)
	require.Len(t, got.Slides, 2)

	_, err = r.GetPresentation(ctx, "ws-2", p1.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	u, err := r.MonthlyUsage(ctx, "ws-1", since)
	require.NoError(t, err)
	require.Equal(t, brew.Usage{Slides: 7, Presentations: 2}, u)
}
