package pipeline

import (
	"fmt"
	"time"

	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/research"
)

// research is best effort: provider errors are reported as research_error
// and the run continues without context. It returns false if the client
// went away.
func (r *Run) research(em *emitter, st *runState) bool {
	defer observe("research", time.Now())
	if !em.emit(events.ResearchStart{Message: "Researching your topic..."}) {
		return false
	}

	ctx, cancel := callContext(em.ctx, r.o.settings.SearchTimeout)
	resp, err := r.o.search.Search(ctx, r.req.Topic, r.o.settings.ResearchResults)
	cancel()
	if err != nil {
		r.log.Warn("research failed, continuing without sources", "error", err)
		return em.emit(events.ResearchError{Message: "Research failed, continuing without sources"})
	}

	for _, s := range resp.Results {
		if !em.emit(events.ResearchSource{URL: s.URL, Title: s.Title, Snippet: s.Snippet}) {
			return false
		}
	}
	st.sources = resp.Results
	st.researchContext = research.FormatForAI(resp)
	return em.emit(events.ResearchComplete{
		Message:     fmt.Sprintf("Found %d sources", len(resp.Results)),
		SourceCount: len(resp.Results),
	})
}
