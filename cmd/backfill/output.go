package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iliyamo/sales-tenancy/internal/migration"
)

type phaseOutput struct {
	Phase   string `json:"phase"`
	Created int    `json:"created"`
	Linked  int    `json:"linked"`
	Skipped int    `json:"skipped"`
	Errored int    `json:"errored"`
}

type runOutput struct {
	RunID  string        `json:"run_id"`
	DryRun bool          `json:"dry_run"`
	Phases []phaseOutput `json:"phases"`
	Error  string        `json:"error,omitempty"`
}

func writeJSON(w io.Writer, runID string, sum migration.Summary, runErr error) error {
	out := runOutput{RunID: runID, DryRun: sum.DryRun, Phases: []phaseOutput{}}
	for _, p := range sum.Phases {
		out.Phases = append(out.Phases, phaseOutput{p.Phase.String(), p.Created, p.Linked, p.Skipped, p.Errored})
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTable(w io.Writer, sum migration.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tCREATED\tLINKED\tSKIPPED\tERRORED")
	for _, p := range sum.Phases {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", p.Phase, p.Created, p.Linked, p.Skipped, p.Errored)
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t\n", sum.TotalCreated(), sum.TotalLinked(), sum.TotalSkipped())
	_ = tw.Flush()
	if sum.DryRun {
		fmt.Fprintln(w, "dry run: no changes were committed")
	}
}
