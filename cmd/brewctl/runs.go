package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/runs"
)

func newRunsCmd(clientFn func() *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past generation runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs of your workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var recs []*runs.Record
			path := fmt.Sprintf("/api/brews/runs?limit=%d", limit)
			if err := clientFn().getJSON(cmd.Context(), path, &recs); err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATUS\tSLIDES\tSTARTED\tTOPIC")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.RunID, r.Status, r.SlideCount, r.StartedAt.Local().Format(time.DateTime), r.Topic)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec runs.Record
			if err := clientFn().getJSON(cmd.Context(), "/api/brews/runs/"+url.PathEscape(args[0]), &rec); err != nil {
				return fmt.Errorf("load run: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:          %s\n", rec.RunID)
			fmt.Fprintf(out, "status:       %s (%s)\n", rec.Status, rec.Phase)
			fmt.Fprintf(out, "topic:        %s\n", rec.Topic)
			fmt.Fprintf(out, "slides:       %d (%d placeholders)\n", rec.SlideCount, rec.Placeholders)
			if rec.PresentationID != "" {
				fmt.Fprintf(out, "presentation: %s\n", rec.PresentationID)
			}
			if rec.Error != "" {
				fmt.Fprintf(out, "error:        %s\n", rec.Error)
			}
			return nil
		},
	}

	replay := &cobra.Command{
		Use:   "events RUN_ID",
		Short: "Replay the journaled events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Events []json.RawMessage `json:"events"`
			}
			if err := clientFn().getJSON(cmd.Context(), "/api/brews/runs/"+url.PathEscape(args[0])+"/events", &body); err != nil {
				return fmt.Errorf("load run events: %w", err)
			}
			p := &printer{w: cmd.OutOrStdout()}
			for _, raw := range body.Events {
				ev, err := events.Decode(raw)
				if err != nil {
					return err
				}
				if err := p.Send(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, replay)
	return cmd
}
