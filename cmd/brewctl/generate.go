package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/slidecoffee/brew-service/internal/events"
)

type generateOptions struct {
	topic      string
	draftID    string
	planFile   string
	slides     int
	noResearch bool
	raw        bool
}

func newGenerateCmd(clientFn func() *client) *cobra.Command {
	var o generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a presentation and follow its event stream",
		Example: `  brewctl generate --topic "Renewable energy in 2030" --slides 8
  brewctl generate --draft 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, body, err := o.request()
			if err != nil {
				return err
			}
			resp, err := clientFn().do(cmd.Context(), http.MethodPost, path, body)
			if err != nil {
				return fmt.Errorf("start generation: %w", err)
			}
			defer resp.Body.Close()

			out := cmd.OutOrStdout()
			if id := resp.Header.Get("X-Run-Id"); id != "" && !o.raw {
				fmt.Fprintf(out, "run %s\n", id)
			}
			p := &printer{w: out, raw: o.raw}
			if err := events.ReadStream(resp.Body, p); err != nil {
				return err
			}
			return p.failure
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.topic, "topic", "", "presentation topic")
	f.StringVar(&o.draftID, "draft", "", "generate from a saved outline draft")
	f.StringVar(&o.planFile, "plan", "", "JSON file holding a presentation plan")
	f.IntVar(&o.slides, "slides", 0, "requested number of slides")
	f.BoolVar(&o.noResearch, "no-research", false, "skip the web research stage")
	f.BoolVar(&o.raw, "json", false, "print every event as a JSON line")
	cmd.MarkFlagsMutuallyExclusive("topic", "draft")
	cmd.MarkFlagsMutuallyExclusive("plan", "draft")
	return cmd
}

func (o generateOptions) request() (string, interface{}, error) {
	if o.draftID != "" {
		return "/api/brews/generate-from-outline", map[string]string{"draftId": o.draftID}, nil
	}
	body := map[string]interface{}{
		"topic":          o.topic,
		"enableResearch": !o.noResearch,
	}
	if o.slides > 0 {
		body["slideCount"] = o.slides
	}
	if o.planFile != "" {
		plan, err := readPlan(o.planFile)
		if err != nil {
			return "", nil, err
		}
		body["presentationPlan"] = plan
	}
	if o.topic == "" && o.planFile == "" {
		return "", nil, fmt.Errorf("one of --topic, --plan or --draft is required")
	}
	return "/api/generate-slides-stream", body, nil
}

func readPlan(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("plan %s is not valid JSON", path)
	}
	return json.RawMessage(b), nil
}

// printer renders events for a terminal and remembers a terminal error.
type printer struct {
	w       io.Writer
	raw     bool
	failure error
}

func (p *printer) Send(e events.Event) error {
	if ev, ok := e.(events.Error); ok {
		p.failure = fmt.Errorf("generation failed: %s", ev.Message)
	}
	if p.raw {
		b, err := events.Encode(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", b)
		return err
	}
	_, err := fmt.Fprintln(p.w, describe(e))
	return err
}

func describe(e events.Event) string {
	switch ev := e.(type) {
	case events.ResearchSource:
		return fmt.Sprintf("  source: %s (%s)", ev.Title, ev.URL)
	case events.ResearchComplete:
		return fmt.Sprintf("research: %s", ev.Message)
	case events.OutlineComplete:
		return fmt.Sprintf("outline: %q with %d slides", ev.Outline.Title, ev.SlideCount)
	case events.SlideGenerated:
		mark := ""
		if ev.Slide.Placeholder {
			mark = " (placeholder)"
		}
		return fmt.Sprintf("  [%d/%d] %s%s %3.0f%%", ev.SlideNumber, ev.TotalSlides, ev.Slide.Title, mark, ev.Progress)
	case events.Complete:
		return fmt.Sprintf("done: presentation %s %q (%d slides)", ev.Presentation.ID, ev.Presentation.Title, ev.Presentation.SlideCount)
	case events.Error:
		return fmt.Sprintf("error: %s", ev.Message)
	}
	b, _ := json.Marshal(e)
	var m struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(b, &m)
	return fmt.Sprintf("%s: %s", e.Type(), m.Message)
}
