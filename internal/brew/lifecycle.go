package brew

import (
	"errors"
	"fmt"
	"sort"
)

// DraftStatus is the lifecycle state of an OutlineDraft.
type DraftStatus string

const (
	DraftStatusDraft      DraftStatus = "draft"
	DraftStatusGenerating DraftStatus = "generating"
	DraftStatusCompleted  DraftStatus = "completed"
)

// Wizard steps used by the outline-first flow.
const (
	StepOutlineEditing = 2
	StepGenerating     = 5
)

var ErrIllegalTransition = errors.New("illegal draft status transition")

// generating -> draft is the rollback taken when a run fails or is abandoned.
var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftStatusDraft:      {DraftStatusGenerating},
	DraftStatusGenerating: {DraftStatusCompleted, DraftStatusDraft},
}

func (s DraftStatus) normalized() DraftStatus {
	if s == "" {
		return DraftStatusDraft
	}
	return s
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s DraftStatus) CanTransitionTo(next DraftStatus) bool {
	for _, allowed := range draftTransitions[s.normalized()] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo validates the move and returns the new status.
func (s DraftStatus) TransitionTo(next DraftStatus) (DraftStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.normalized(), next)
	}
	return next, nil
}

// Terminal reports whether no further transitions are possible.
func (s DraftStatus) Terminal() bool {
	return len(draftTransitions[s.normalized()]) == 0
}

// SourcesOf lists the statuses from which next is reachable, for use in
// conditional store updates.
func SourcesOf(next DraftStatus) []DraftStatus {
	var out []DraftStatus
	for from, targets := range draftTransitions {
		for _, t := range targets {
			if t == next {
				out = append(out, from)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
