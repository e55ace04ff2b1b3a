package catalog

import (
	"maps"
	"slices"

	"github.com/hazyhaar/argos/method"
	"github.com/hazyhaar/argos/retrieve"
)

// Discriminate learns which signatures of spec separate the real samples
// from the fake ones. Signatures seen on both sides are moved to Overlap;
// the entry is Good when anything exclusive remains. The result carries no
// ID: the store assigns one on append.
func Discriminate(spec method.Spec, real, fake []retrieve.Sample) Entry {
	realSet := signatures(spec, real)
	fakeSet := signatures(spec, fake)

	overlap := make(map[string]bool)
	for sig := range realSet {
		if fakeSet[sig] {
			overlap[sig] = true
		}
	}
	for sig := range overlap {
		delete(realSet, sig)
		delete(fakeSet, sig)
	}

	e := Entry{
		OutcomesReal: sorted(realSet),
		OutcomesFake: sorted(fakeSet),
		Overlap:      sorted(overlap),
		Status:       Bad,
	}

	if len(e.OutcomesReal) > 0 || len(e.OutcomesFake) > 0 {
		e.Status = Good
	}
	e.Rationale = rationale(len(e.OutcomesReal), len(e.OutcomesFake), len(e.Overlap))

	evidence := make(map[string]any, len(spec.Evidence)+3)
	maps.Copy(evidence, spec.Evidence)
	evidence["real_outcomes_count"] = len(e.OutcomesReal)
	evidence["fake_outcomes_count"] = len(e.OutcomesFake)
	evidence["overlap_count"] = len(e.Overlap)
	spec.Evidence = evidence
	e.Spec = spec
	return e
}

func signatures(spec method.Spec, samples []retrieve.Sample) map[string]bool {
	set := make(map[string]bool)
	for _, s := range samples {
		if sig, ok := method.Signature(spec, s); ok {
			set[sig] = true
		}
	}
	return set
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func rationale(real, fake, overlap int) string {
	switch {
	case real > 0 && fake > 0:
		return "outcomes exclusive to both real and fake identities"
	case real > 0:
		return "outcomes exclusive to real identities"
	case fake > 0:
		return "outcomes exclusive to fake identities"
	case overlap > 0:
		return "every outcome seen for both real and fake identities"
	}
	return "insufficient samples"
}
