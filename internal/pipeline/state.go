package pipeline

import "fmt"

// Phase is the orchestrator's position in a run.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseQuotaChecked     Phase = "quota_checked"
	PhaseResearching      Phase = "researching"
	PhaseOutlining        Phase = "outlining"
	PhaseGeneratingSlides Phase = "generating_slides"
	PhasePersisting       Phase = "persisting"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
	// PhaseAbandoned is entered when the client goes away mid-run.
	PhaseAbandoned Phase = "abandoned"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:             {PhaseQuotaChecked, PhaseFailed},
	PhaseQuotaChecked:     {PhaseResearching, PhaseOutlining, PhaseAbandoned},
	PhaseResearching:      {PhaseOutlining, PhaseAbandoned},
	PhaseOutlining:        {PhaseGeneratingSlides, PhaseFailed, PhaseAbandoned},
	PhaseGeneratingSlides: {PhasePersisting, PhaseAbandoned},
	PhasePersisting:       {PhaseCompleted, PhaseFailed},
}

// Terminal reports whether p is absorbing.
func (p Phase) Terminal() bool {
	return len(phaseTransitions[p]) == 0
}

type machine struct {
	phase Phase
}

func newMachine() *machine { return &machine{phase: PhaseIdle} }

// advance moves to next or reports an illegal transition. Stages never
// re-enter an earlier phase.
func (m *machine) advance(next Phase) error {
	for _, allowed := range phaseTransitions[m.phase] {
		if allowed == next {
			m.phase = next
			return nil
		}
	}
	return fmt.Errorf("illegal pipeline transition %s -> %s", m.phase, next)
}

func (m *machine) current() Phase { return m.phase }
