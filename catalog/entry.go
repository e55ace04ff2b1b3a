// Package catalog holds learned detection methods: the discrimination engine
// that turns real/fake samples into catalog entries, the derivation of which
// methods are worth trying for a site, and the append-only stores entries
// are persisted in.
package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/hazyhaar/argos/method"
)

// Status says whether a method separates real from fake identities.
type Status string

const (
	Good Status = "GOOD" // discriminating
	Bad  Status = "BAD"  // non-discriminating
)

// Entry is a method plus the outcomes learned for it. OutcomesReal,
// OutcomesFake and Overlap are sorted and pairwise disjoint. Entries are
// read-only once stored.
type Entry struct {
	ID           int64
	Spec         method.Spec
	OutcomesReal []string
	OutcomesFake []string
	Overlap      []string
	Status       Status
	Rationale    string
}

type entryJSON struct {
	ID           int64           `json:"id,omitempty"`
	Site         string          `json:"site"`
	URLTemplate  string          `json:"url_template"`
	Type         method.Type     `json:"type"`
	Params       json.RawMessage `json:"params"`
	Evidence     map[string]any  `json:"evidence,omitempty"`
	OutcomesReal []string        `json:"outcomes_real"`
	OutcomesFake []string        `json:"outcomes_fake"`
	Overlap      []string        `json:"outcomes_overlap"`
	Status       Status          `json:"status"`
	Rationale    string          `json:"rationale,omitempty"`
}

// MarshalJSON writes the flat catalog record.
func (e Entry) MarshalJSON() ([]byte, error) {
	params, err := method.EncodeParams(e.Spec.Type, e.Spec.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		ID:           e.ID,
		Site:         e.Spec.Site,
		URLTemplate:  e.Spec.URLTemplate,
		Type:         e.Spec.Type,
		Params:       params,
		Evidence:     e.Spec.Evidence,
		OutcomesReal: nonNil(e.OutcomesReal),
		OutcomesFake: nonNil(e.OutcomesFake),
		Overlap:      nonNil(e.Overlap),
		Status:       e.Status,
		Rationale:    e.Rationale,
	})
}

// UnmarshalJSON decodes and validates a catalog record.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var j entryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	p, err := method.DecodeParams(j.Type, j.Params)
	if err != nil {
		return err
	}
	switch j.Status {
	case Good, Bad:
	default:
		return fmt.Errorf("catalog: unknown status %q", j.Status)
	}
	*e = Entry{
		ID: j.ID,
		Spec: method.Spec{
			Site:        j.Site,
			URLTemplate: j.URLTemplate,
			Type:        j.Type,
			Params:      p,
			Evidence:    j.Evidence,
		},
		Status:    j.Status,
		Rationale: j.Rationale,
	}
	e.OutcomesReal, e.OutcomesFake, e.Overlap = normalizeOutcomes(j.OutcomesReal, j.OutcomesFake, j.Overlap)
	return nil
}

// normalizeOutcomes sorts and dedups hand-edited outcome lists. A signature
// listed on both the real and fake side is moved to the overlap.
func normalizeOutcomes(realList, fakeList, overlapList []string) ([]string, []string, []string) {
	realSet := toSet(realList)
	fakeSet := toSet(fakeList)
	overlapSet := toSet(overlapList)
	for sig := range realSet {
		if fakeSet[sig] {
			overlapSet[sig] = true
		}
	}
	for sig := range overlapSet {
		delete(realSet, sig)
		delete(fakeSet, sig)
	}
	return sorted(realSet), sorted(fakeSet), sorted(overlapSet)
}

func toSet(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

// IsReal reports whether sig was learned as a real-only outcome.
func (e Entry) IsReal(sig string) bool {
	_, found := slices.BinarySearch(e.OutcomesReal, sig)
	return found
}

// IsFake reports whether sig was learned as a fake-only outcome.
func (e Entry) IsFake(sig string) bool {
	_, found := slices.BinarySearch(e.OutcomesFake, sig)
	return found
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ForSite returns the entries whose site name starts with prefix, in order.
func ForSite(entries []Entry, prefix string) []Entry {
	var out []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Spec.Site, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// SiteGroup is the methods sharing one exact site name.
type SiteGroup struct {
	Site    string
	Entries []Entry
}

// GroupBySite groups entries by exact site name, ordered by first appearance.
func GroupBySite(entries []Entry) []SiteGroup {
	idx := make(map[string]int)
	var groups []SiteGroup
	for _, e := range entries {
		site := e.Spec.Site
		if site == "" {
			site = "general"
		}
		i, ok := idx[site]
		if !ok {
			i = len(groups)
			idx[site] = i
			groups = append(groups, SiteGroup{Site: site})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// BaseName is the longest all-letter prefix of a site name
// ("instagram2" -> "instagram"). Names starting with a non-letter have none.
func BaseName(site string) string {
	end := 0
	for i, r := range site {
		if !unicode.IsLetter(r) {
			break
		}
		end = i + len(string(r))
	}
	return site[:end]
}

// BaseNames lists the distinct base names across entries, sorted.
func BaseNames(entries []Entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		b := BaseName(e.Spec.Site)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}
