package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "alice" || name == "bob" || name == "carol" {
			fmt.Fprintf(w, `<html><head><title>%[1]s on Social</title></head><body><h1>@%[1]s</h1><p>10 followers</p></body></html>`, name)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<html><head><title>Not found</title></head><body>Sorry, nothing here.</body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfigFile(t *testing.T) (cfgPath, reportDir string) {
	t.Helper()
	dir := t.TempDir()
	reportDir = filepath.Join(dir, "reports")
	cfgPath = filepath.Join(dir, "argos.yaml")
	body := fmt.Sprintf("catalog: %s\nreport_dir: %s\naudit: %s\npacing: 1ms\n",
		filepath.Join(dir, "sitios.json"), reportDir, filepath.Join(dir, "audit.db"))
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, reportDir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLearnCheckAndPrune(t *testing.T) {
	site := testSite(t)
	cfg, reportDir := testConfigFile(t)

	out, err := runCLI(t, "good\n", "--config", cfg, "learn",
		"-s", "social", "-t", site.URL+"/{user}", "-r", "alice,bob", "-f", "zz_nobody_91")
	if err != nil {
		t.Fatalf("learn: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 real and 1 fake samples") || !strings.Contains(out, "saved ") {
		t.Errorf("learn output:\n%s", out)
	}

	out, err = runCLI(t, "", "--config", cfg, "check", "carol")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"verdict": "EXISTS"`) {
		t.Errorf("check output:\n%s", out)
	}
	reports, _ := filepath.Glob(filepath.Join(reportDir, "report_carol_*.txt"))
	if len(reports) != 1 {
		t.Errorf("reports = %v", reports)
	}

	out, err = runCLI(t, "", "--config", cfg, "methods", "list", "soc")
	if err != nil || !strings.Contains(out, "status_code") {
		t.Errorf("list: %v\n%s", err, out)
	}

	out, err = runCLI(t, "", "--config", cfg, "methods", "delete", "--site", "social")
	if err != nil || !strings.Contains(out, "deleted ") {
		t.Errorf("delete: %v\n%s", err, out)
	}
	out, _ = runCLI(t, "", "--config", cfg, "methods", "list")
	if !strings.Contains(out, "no methods") {
		t.Errorf("after delete:\n%s", out)
	}

	out, err = runCLI(t, "", "--config", cfg, "audit")
	if err != nil {
		t.Fatalf("audit: %v\n%s", err, out)
	}
	for _, want := range []string{"commit", "check", "delete_method", "cli"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %q:\n%s", want, out)
		}
	}
	out, _ = runCLI(t, "", "--config", cfg, "audit", "--action", "check")
	if strings.Contains(out, "commit") {
		t.Errorf("action filter ignored:\n%s", out)
	}
}

func TestLearnSelectNone(t *testing.T) {
	site := testSite(t)
	cfg, _ := testConfigFile(t)
	out, err := runCLI(t, "", "--config", cfg, "learn", "--select", "none",
		"-s", "social", "-t", site.URL+"/{user}", "-r", "alice")
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if !strings.Contains(out, "nothing saved") {
		t.Errorf("output:\n%s", out)
	}
}

func TestMethodsDeleteArgs(t *testing.T) {
	cfg, _ := testConfigFile(t)
	if _, err := runCLI(t, "", "--config", cfg, "methods", "delete"); err == nil {
		t.Error("delete without ids or --site should fail")
	}
	if _, err := runCLI(t, "", "--config", cfg, "methods", "delete", "x1"); err == nil {
		t.Error("non-numeric id should fail")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a,b", " c ", "", "d e"})
	want := []string{"a", "b", "c", "d", "e"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" || parseLevel("bogus").String() != "WARN" {
		t.Error("parseLevel")
	}
}
