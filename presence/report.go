package presence

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/metadata"
	"github.com/hazyhaar/argos/verdict"
)

// Report is the result of one check run.
type Report struct {
	RunID     string        `json:"run_id"`
	Identity  string        `json:"identity"`
	StartedAt time.Time     `json:"started_at"`
	Took      time.Duration `json:"took"`
	Rendering bool          `json:"rendering"`
	Probes    int           `json:"probes"`
	Sites     []SiteReport  `json:"sites"`
}

// SiteReport is the verdict for one site.
type SiteReport struct {
	Site         string                 `json:"site"`
	Verdict      verdict.Verdict        `json:"verdict"`
	ViaHeuristic bool                   `json:"via_heuristic,omitempty"`
	Methods      []verdict.MethodResult `json:"methods"`
	Metadata     *metadata.Info         `json:"metadata,omitempty"`
}

// Found lists the sites judged to hold the identity.
func (r *Report) Found() []string {
	var out []string
	for _, s := range r.Sites {
		if s.Verdict == verdict.Exists {
			out = append(out, s.Site)
		}
	}
	return out
}

// RenderTable writes the per-method and per-site tables, then one
// metadata table per site with extractions.
func (r *Report) RenderTable(w io.Writer) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("%s  (%s)", r.Identity, r.RunID)
	tw.AppendHeader(table.Row{"Site", "Verdict", "ID", "Method", "Method verdict", "Outcome", "Final URL"})
	for _, s := range r.Sites {
		site := string(s.Verdict)
		if s.ViaHeuristic {
			site += " (heuristic)"
		}
		for _, m := range s.Methods {
			tw.AppendRow(table.Row{s.Site, site, m.EntryID, m.Type, m.Verdict, truncate(m.Outcome, 48), truncate(m.FinalURL, 60)})
		}
		if len(s.Methods) == 0 {
			tw.AppendRow(table.Row{s.Site, site, "", "", "", "", ""})
		}
		tw.AppendSeparator()
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 2, AutoMerge: true},
		{Number: 3, Align: text.AlignRight},
	})
	if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
		return err
	}

	for _, s := range r.Sites {
		if s.Metadata == nil {
			continue
		}
		mt := table.NewWriter()
		mt.SetStyle(table.StyleRounded)
		mt.SetTitle("%s", s.Site)
		for _, f := range s.Metadata.Fields() {
			mt.AppendRow(table.Row{f.Name, f.Value})
		}
		if _, err := fmt.Fprintln(w, mt.Render()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "found on %d of %d sites in %s\n", len(r.Found()), len(r.Sites), r.Took.Round(time.Millisecond))
	return err
}

// WriteText writes the plain-text report kept on disk: the methods checked
// per site, then every extraction.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Search report: %s\n", r.Identity)
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Date: %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	for _, s := range r.Sites {
		fmt.Fprintf(&b, "\n[%s] %s", s.Site, s.Verdict)
		if s.ViaHeuristic {
			b.WriteString(" (heuristic)")
		}
		b.WriteByte('\n')
		for i, m := range s.Methods {
			fmt.Fprintf(&b, " - %02d %-22s %-13s %s\n", i+1, m.Type, m.Verdict, m.Outcome)
		}
	}
	var extracted []SiteReport
	for _, s := range r.Sites {
		if s.Metadata != nil {
			extracted = append(extracted, s)
		}
	}
	if len(extracted) > 0 {
		b.WriteString("\n\n=== EXTRACTIONS ===\n")
		for _, s := range extracted {
			fmt.Fprintf(&b, "\n[%s] EXISTS\n", s.Site)
			for _, f := range s.Metadata.Fields() {
				fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._@-]+`)

// ReportFileName names the text report of a run.
func ReportFileName(identity string, at time.Time) string {
	name := unsafeName.ReplaceAllString(identity, "_")
	return fmt.Sprintf("report_%s_%s.txt", name, at.Format("20060102_150405"))
}

// RenderReview writes a numbered review table of entries: status, outcome
// counts, rationale and up to two sample outcomes per side. Committed
// entries show their catalog ID, candidates their position.
func RenderReview(w io.Writer, entries []catalog.Entry) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Site", "Method", "Status", "R", "F", "Overlap", "Rationale", "Samples"})
	for i, e := range entries {
		n := strconv.Itoa(i + 1)
		if e.ID > 0 {
			n = strconv.FormatInt(e.ID, 10)
		}
		var samples []string
		if len(e.OutcomesReal) > 0 {
			samples = append(samples, "real: "+preview(e.OutcomesReal))
		}
		if len(e.OutcomesFake) > 0 {
			samples = append(samples, "fake: "+preview(e.OutcomesFake))
		}
		if len(e.Overlap) > 0 {
			samples = append(samples, "both: "+preview(e.Overlap))
		}
		tw.AppendRow(table.Row{
			n, e.Spec.Site, e.Spec.Type, e.Status,
			len(e.OutcomesReal), len(e.OutcomesFake), len(e.Overlap),
			e.Rationale, strings.Join(samples, "\n"),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func preview(outcomes []string) string {
	shown := outcomes[:min(2, len(outcomes))]
	s := make([]string, len(shown))
	for i, o := range shown {
		s[i] = truncate(o, 40)
	}
	out := strings.Join(s, ", ")
	if len(outcomes) > 2 {
		out += " ..."
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
