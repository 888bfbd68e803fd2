package pipeline

import (
	"fmt"
	"time"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/events"
)

// persist writes the presentation, links the draft, and emits complete. A
// draft update failure after the presentation exists is only logged.
func (r *Run) persist(em *emitter, st *runState) error {
	defer observe("persist", time.Now())
	if em.gone() {
		return errAbandoned
	}

	title := st.outline.Title
	if title == "" {
		title = r.topic()
	}
	p := &brew.Presentation{
		WorkspaceID: r.req.WorkspaceID,
		ProjectID:   r.projectID(),
		BrandID:     r.brandID(),
		Title:       title,
		Description: st.outline.Summary,
		Slides:      st.slides,
		SlideCount:  len(st.slides),
		Status:      brew.PresentationStatusDraft,
		CreatedBy:   r.req.UserID,
		CreatedAt:   r.o.now(),
	}
	if r.draft != nil {
		p.OutlineDraftID = r.draft.ID
	}

	ctx, cancel := callContext(em.ctx, r.o.settings.PersistTimeout)
	defer cancel()
	if err := r.o.presentations.CreatePresentation(ctx, p); err != nil {
		return fmt.Errorf("%w: %v", errPersist, err)
	}
	st.presentation = p

	if r.draft != nil {
		_, err := r.o.drafts.TransitionDraft(ctx, r.req.WorkspaceID, r.draft.ID, repository.Transition{
			To:             brew.DraftStatusCompleted,
			PresentationID: p.ID,
			At:             r.o.now(),
		})
		if err != nil {
			r.log.Error("presentation saved but draft not marked completed", "draft_id", r.draft.ID, "presentation_id", p.ID, "error", err)
		}
	}

	sources := make([]events.SourceRef, 0, len(st.sources))
	for _, s := range st.sources {
		sources = append(sources, events.SourceRef{URL: s.URL, Title: s.Title})
	}
	em.emit(events.Complete{
		Message:      "Presentation created successfully!",
		Presentation: events.PresentationRef{ID: p.ID, Title: p.Title, SlideCount: p.SlideCount},
		Sources:      sources,
	})
	return nil
}

// brandID is the brand the presentation is filed under: the request's, then
// the draft's.
func (r *Run) brandID() string {
	if r.req.BrandID != "" {
		return r.req.BrandID
	}
	if r.req.Brand != nil && r.req.Brand.ID != "" {
		return r.req.Brand.ID
	}
	if r.draft != nil {
		return r.draft.BrandID
	}
	return ""
}

func (r *Run) projectID() string {
	if r.req.ProjectID == "" && r.draft != nil {
		return r.draft.ProjectID
	}
	return r.req.ProjectID
}
