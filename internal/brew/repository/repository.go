// Package repository persists outline drafts and presentations.
package repository

import (
	"errors"
	"time"

	"github.com/slidecoffee/brew-service/internal/brew"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional status update finds the draft
	// in a status from which the requested transition is not allowed.
	ErrConflict = errors.New("draft status conflict")
)

// editableStatuses are the draft statuses in which step edits are accepted.
// Drafts stored before status tracking have an empty status.
var editableStatuses = []brew.DraftStatus{brew.DraftStatusDraft, ""}

func editable(s brew.DraftStatus) bool {
	return s == brew.DraftStatusDraft || s == ""
}

// DraftPatch carries the step-edit fields of an outline draft. Nil fields are
// left unchanged.
type DraftPatch struct {
	Outline     *brew.Outline
	CurrentStep *int
	ThemeID     *string
	Theme       *brew.ThemeStyle
	BrandID     *string
	Brand       *brew.Brand
}

// Transition describes a conditional draft status change.
type Transition struct {
	To             brew.DraftStatus
	CurrentStep    int
	PresentationID string
	At             time.Time
}

func (p DraftPatch) apply(d *brew.OutlineDraft) {
	if p.Outline != nil {
		d.Outline = p.Outline
	}
	if p.CurrentStep != nil {
		d.CurrentStep = *p.CurrentStep
	}
	if p.ThemeID != nil {
		d.ThemeID = *p.ThemeID
	}
	if p.Theme != nil {
		d.Theme = p.Theme
	}
	if p.BrandID != nil {
		d.BrandID = *p.BrandID
	}
	if p.Brand != nil {
		d.Brand = p.Brand
	}
}

func (t Transition) apply(d *brew.OutlineDraft) {
	d.Status = t.To
	if t.CurrentStep > 0 {
		d.CurrentStep = t.CurrentStep
	}
	if t.To == brew.DraftStatusCompleted {
		d.PresentationID = t.PresentationID
		at := t.At
		d.CompletedAt = &at
	}
	d.UpdatedAt = t.At
}

func sourceStatuses(to brew.DraftStatus) []brew.DraftStatus {
	src := brew.SourcesOf(to)
	for _, s := range src {
		if s == brew.DraftStatusDraft {
			return append(src, "")
		}
	}
	return src
}
