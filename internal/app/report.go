package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"api-integrator/internal/config"
	"api-integrator/internal/mapping"
	"api-integrator/internal/orchestrator"
)

// render writes the outcome in the configured format
func render(w io.Writer, format, command string, outcome *orchestrator.RunOutcome) error {
	if format == config.FormatJSON {
		return renderJSON(w, command, outcome)
	}
	if command == "fields" {
		return renderFetchFieldsText(w, outcome)
	}
	return renderText(w, outcome)
}

type fieldsReport struct {
	Fetch  string              `json:"fetch"`
	Status string              `json:"status"`
	Fields []mapping.FieldInfo `json:"fields"`
}

func renderJSON(w io.Writer, command string, outcome *orchestrator.RunOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if command == "fields" {
		return enc.Encode(lo.Map(outcome.Fetches, func(f orchestrator.FetchRecord, _ int) fieldsReport {
			return fieldsReport{Fetch: f.Label(), Status: string(f.Status), Fields: f.Fields}
		}))
	}

	return enc.Encode(struct {
		*orchestrator.RunOutcome
		Summary orchestrator.Summary `json:"summary"`
	}{outcome, outcome.Summarize()})
}

func renderText(w io.Writer, outcome *orchestrator.RunOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (%s): %s in %s\n", outcome.RunID, outcome.Mode, outcome.Status,
		outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond))

	fmt.Fprintln(tw, "\nFETCHES")
	for _, f := range outcome.Fetches {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", f.Status, f.Label(), code(f.StatusCode),
			f.Duration.Round(time.Millisecond), f.Reason)
	}

	if len(outcome.Sinks) > 0 {
		fmt.Fprintln(tw, "\nSINKS")
		for _, s := range outcome.Sinks {
			attempt := ""
			if s.Attempt != "" {
				attempt = "via " + s.Attempt
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", s.Status, s.Label(), code(s.StatusCode), attempt, s.Reason)
		}
	}

	if outcome.Mode.RunsRules() {
		fmt.Fprintln(tw, "\nRULES")
		for _, r := range outcome.Rules {
			target := fmt.Sprintf("-> %s %s %s", r.Target, r.Method, r.Path)
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", r.Status, r.Name, target, code(r.StatusCode), r.Reason)
			if r.Status == orchestrator.RulePlanned {
				payload, err := json.Marshal(r.Payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "  \t\tpayload %s\t\t\n", payload)
			}
		}
	}

	summary := outcome.Summarize()
	fmt.Fprintf(tw, "\n%s\n", summaryLine(summary))

	return tw.Flush()
}

func renderFetchFieldsText(w io.Writer, outcome *orchestrator.RunOutcome) error {
	for i, f := range outcome.Fetches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", f.Label(), f.Status)
		if f.Status != orchestrator.FetchOK {
			fmt.Fprintf(w, "  %s\n", f.Reason)
			continue
		}
		if err := renderFields(w, config.FormatText, f.Fields); err != nil {
			return err
		}
	}
	return nil
}

// renderFields prints one path per line with its JSON type
func renderFields(w io.Writer, format string, fields []mapping.FieldInfo) error {
	if format == config.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "  %s\t%s\n", f.Path, f.Type)
	}
	return tw.Flush()
}

func summaryLine(s orchestrator.Summary) string {
	line := "fetches: " + counts(s.Fetches)
	if len(s.Rules) > 0 {
		line += "; rules: " + counts(s.Rules)
	}
	if len(s.Sinks) > 0 {
		line += "; sinks: " + counts(s.Sinks)
	}
	return line
}

// counts renders status counts ordered by status name
func counts[K ~string](m map[K]int) string {
	if len(m) == 0 {
		return "none"
	}
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return strings.Join(lo.Map(keys, func(k K, _ int) string {
		return fmt.Sprintf("%d %s", m[k], k)
	}), ", ")
}

func code(status int) string {
	if status == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", status)
}
