package catalog

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/retrieve"
)

func sample(identity string, status int, finalURL, body string) retrieve.Sample {
	return retrieve.Sample{
		Identity: identity,
		Plain: &retrieve.Response{
			URL:      finalURL,
			FinalURL: finalURL,
			Status:   status,
			Body:     body,
			Channel:  retrieve.ChannelHTTP,
		},
	}
}

func statusSpec() method.Spec {
	return method.NewSpec("demo", "https://demo.test/{user}", &method.StatusCodeParams{}, map[string]any{"note": "x"})
}

func TestDiscriminateSeparates(t *testing.T) {
	real := []retrieve.Sample{sample("alice", 200, "", "")}
	fake := []retrieve.Sample{sample("zz9", 404, "", "")}

	e := Discriminate(statusSpec(), real, fake)
	if e.Status != Good {
		t.Fatalf("Status = %s, want GOOD", e.Status)
	}
	if !slices.Equal(e.OutcomesReal, []string{"status=200"}) {
		t.Errorf("OutcomesReal = %v", e.OutcomesReal)
	}
	if !slices.Equal(e.OutcomesFake, []string{"status=404"}) {
		t.Errorf("OutcomesFake = %v", e.OutcomesFake)
	}
	if len(e.Overlap) != 0 {
		t.Errorf("Overlap = %v, want empty", e.Overlap)
	}
	if e.ID != 0 {
		t.Errorf("ID = %d, want 0 before append", e.ID)
	}
	if e.Spec.Evidence["real_outcomes_count"] != 1 || e.Spec.Evidence["overlap_count"] != 0 {
		t.Errorf("evidence counters = %v", e.Spec.Evidence)
	}
	if e.Spec.Evidence["note"] != "x" {
		t.Error("original evidence lost")
	}
}

func TestDiscriminateAllOverlapIsBad(t *testing.T) {
	real := []retrieve.Sample{sample("alice", 200, "", "")}
	fake := []retrieve.Sample{sample("zz9", 200, "", "")}

	e := Discriminate(statusSpec(), real, fake)
	if e.Status != Bad {
		t.Fatalf("Status = %s, want BAD", e.Status)
	}
	if !slices.Equal(e.Overlap, []string{"status=200"}) {
		t.Errorf("Overlap = %v", e.Overlap)
	}
	if len(e.OutcomesReal) != 0 || len(e.OutcomesFake) != 0 {
		t.Errorf("exclusive sets not empty: %v %v", e.OutcomesReal, e.OutcomesFake)
	}
}

func TestDiscriminatePartialOverlap(t *testing.T) {
	real := []retrieve.Sample{sample("a", 200, "", ""), sample("b", 302, "", "")}
	fake := []retrieve.Sample{sample("x", 302, "", ""), sample("y", 404, "", "")}

	e := Discriminate(statusSpec(), real, fake)
	if !slices.Equal(e.OutcomesReal, []string{"status=200"}) ||
		!slices.Equal(e.OutcomesFake, []string{"status=404"}) ||
		!slices.Equal(e.Overlap, []string{"status=302"}) {
		t.Fatalf("got real=%v fake=%v overlap=%v", e.OutcomesReal, e.OutcomesFake, e.Overlap)
	}
	for _, sig := range e.OutcomesReal {
		if slices.Contains(e.OutcomesFake, sig) || slices.Contains(e.Overlap, sig) {
			t.Errorf("%q is not disjoint", sig)
		}
	}
}

func TestDiscriminateNoSamples(t *testing.T) {
	e := Discriminate(statusSpec(), nil, nil)
	if e.Status != Bad {
		t.Errorf("Status = %s, want BAD", e.Status)
	}
	if e.Rationale != "insufficient samples" {
		t.Errorf("Rationale = %q", e.Rationale)
	}
	if e.OutcomesReal == nil || e.OutcomesFake == nil || e.Overlap == nil {
		t.Error("outcome sets must be non-nil")
	}
}

func TestDiscriminateTransportFailure(t *testing.T) {
	real := []retrieve.Sample{sample("a", 200, "", "")}
	fake := []retrieve.Sample{sample("x", retrieve.StatusTransportError, "", "[HTTP_ERROR] dial")}

	e := Discriminate(statusSpec(), real, fake)
	if !slices.Equal(e.OutcomesFake, []string{"status=-1"}) {
		t.Errorf("OutcomesFake = %v", e.OutcomesFake)
	}
}

func TestDiscriminateDeterministic(t *testing.T) {
	real := []retrieve.Sample{
		sample("a", 200, "https://demo.test/a", ""),
		sample("b", 200, "https://demo.test/b", ""),
		sample("c", 200, "https://demo.test/c", ""),
	}
	fake := []retrieve.Sample{sample("x", 404, "https://demo.test/login", "")}
	spec := method.NewSpec("demo", "https://demo.test/{user}", &method.URLCheckParams{}, nil)

	first, err := json.Marshal(Discriminate(spec, real, fake))
	if err != nil {
		t.Fatal(err)
	}
	slices.Reverse(real)
	second, err := json.Marshal(Discriminate(spec, real, fake))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("not deterministic:\n%s\n%s", first, second)
	}
}

func TestDiscriminateDoesNotMutateSpec(t *testing.T) {
	spec := statusSpec()
	Discriminate(spec, []retrieve.Sample{sample("a", 200, "", "")}, nil)
	if _, ok := spec.Evidence["real_outcomes_count"]; ok {
		t.Error("input evidence map was mutated")
	}
}
