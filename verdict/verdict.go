// Package verdict maps method signatures to existence verdicts and
// aggregates a site's method verdicts into one.
package verdict

import (
	"github.com/hazyhaar/argos/catalog"
)

// Verdict is the outcome for an identity on a method or a site.
type Verdict string

const (
	Exists        Verdict = "EXISTS"
	NotExists     Verdict = "NOT_EXISTS"
	Indeterminate Verdict = "INDETERMINATE"
)

// DecideMethod looks sig up in the learned outcome sets of e. An absent
// signature (ok false), or one learned on neither side or on both, is
// Indeterminate.
func DecideMethod(e catalog.Entry, sig string, ok bool) Verdict {
	if !ok {
		return Indeterminate
	}
	isReal, isFake := e.IsReal(sig), e.IsFake(sig)
	switch {
	case isReal && !isFake:
		return Exists
	case isFake && !isReal:
		return NotExists
	}
	return Indeterminate
}

// MethodResult is the verdict of one catalog entry for one identity.
type MethodResult struct {
	EntryID int64   `json:"id"`
	Type    string  `json:"type"`
	Verdict Verdict `json:"verdict"`
	// Outcome is the observed signature; empty when absent.
	Outcome  string `json:"outcome,omitempty"`
	FinalURL string `json:"final_url,omitempty"`
	Channel  string `json:"channel,omitempty"`
	// Inapplicable marks a method whose template could not take the
	// identity. It never votes.
	Inapplicable bool `json:"inapplicable,omitempty"`
}

// DecideSite aggregates method results: any NOT_EXISTS wins, then any
// EXISTS, otherwise INDETERMINATE. Inapplicable results are skipped.
func DecideSite(results []MethodResult) Verdict {
	var exists bool
	for _, r := range results {
		if r.Inapplicable {
			continue
		}
		switch r.Verdict {
		case NotExists:
			return NotExists
		case Exists:
			exists = true
		}
	}
	if exists {
		return Exists
	}
	return Indeterminate
}
