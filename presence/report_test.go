package presence

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/metadata"
	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/verdict"
)

func testReport() *Report {
	return &Report{
		RunID:     "run_abc",
		Identity:  "alice",
		StartedAt: time.Date(2026, 3, 4, 15, 6, 7, 0, time.UTC),
		Took:      1500 * time.Millisecond,
		Sites: []SiteReport{
			{
				Site:    "social",
				Verdict: verdict.Exists,
				Methods: []verdict.MethodResult{
					{EntryID: 1, Type: "status_code", Verdict: verdict.Exists, Outcome: "status=200"},
					{EntryID: 2, Type: "html_contains", Verdict: verdict.Indeterminate, Outcome: "html_hit=False"},
				},
				Metadata: &metadata.Info{FinalURL: "https://social.example/alice", Handle: "alice", Followers: "1,204"},
			},
			{
				Site:    "forum",
				Verdict: verdict.NotExists,
				Methods: []verdict.MethodResult{
					{EntryID: 3, Type: "status_code", Verdict: verdict.NotExists, Outcome: "status=404"},
				},
			},
			{
				Site:         "pins",
				Verdict:      verdict.Exists,
				ViaHeuristic: true,
			},
		},
	}
}

func TestReportFound(t *testing.T) {
	got := testReport().Found()
	if len(got) != 2 || got[0] != "social" || got[1] != "pins" {
		t.Errorf("Found = %v", got)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := testReport().WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Search report: alice\n",
		"Run: run_abc\n",
		"Date: 2026-03-04 15:06:07\n",
		"[social] EXISTS\n",
		" - 01 status_code",
		" - 02 html_contains",
		"[forum] NOT_EXISTS\n",
		"[pins] EXISTS (heuristic)\n",
		"=== EXTRACTIONS ===",
		"final_url: https://social.example/alice\n",
		"handle: alice\n",
		"followers: 1,204\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
	if strings.Index(out, "=== EXTRACTIONS ===") < strings.Index(out, "[pins]") {
		t.Error("extractions should follow the per-site section")
	}
	if strings.Contains(out, "[forum] EXISTS") {
		t.Error("sites without metadata listed in extractions")
	}
}

func TestWriteTextNoExtractions(t *testing.T) {
	rep := testReport()
	rep.Sites = rep.Sites[1:2]
	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "EXTRACTIONS") {
		t.Errorf("unexpected extraction section:\n%s", buf.String())
	}
}

func TestReportFileName(t *testing.T) {
	at := time.Date(2026, 3, 4, 15, 6, 7, 0, time.UTC)
	tests := []struct {
		identity, want string
	}{
		{"alice", "report_alice_20260304_150607.txt"},
		{"jane.doe@mail.example", "report_jane.doe@mail.example_20260304_150607.txt"},
		{"../etc/passwd", "report_.._etc_passwd_20260304_150607.txt"},
		{"a b  c", "report_a_b_c_20260304_150607.txt"},
	}
	for _, tt := range tests {
		if got := ReportFileName(tt.identity, at); got != tt.want {
			t.Errorf("ReportFileName(%q) = %q, want %q", tt.identity, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	if err := testReport().RenderTable(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run_abc", "social", "NOT_EXISTS", "EXISTS (heuristic)", "status=404", "1,204", "found on 2 of 3 sites in 1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q\n%s", want, out)
		}
	}
}

func TestRenderReview(t *testing.T) {
	committed := entry("social", "https://s.example/{user}", &method.StatusCodeParams{}, []string{"status=200"}, []string{"status=404"})
	committed.ID = 42
	committed.Rationale = "outcomes exclusive to both real and fake identities"
	candidate := entry("social", "https://s.example/{user}", &method.URLCheckParams{},
		[]string{"final_url=a", "final_url=b", "final_url=c"}, nil)
	candidate.Status = catalog.Bad

	var buf bytes.Buffer
	if err := RenderReview(&buf, []catalog.Entry{committed, candidate}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"42", "status_code", "url_check", "GOOD", "BAD", "real: final_url=a, final_url=b ...", "fake: status=404"} {
		if !strings.Contains(out, want) {
			t.Errorf("review missing %q\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("ñandú-ñandú-ñandú", 8); got != "ñandú..." {
		t.Errorf("got %q", got)
	}
}
