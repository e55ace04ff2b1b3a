// Package idgen generates the identifiers argos stamps on check runs.
//
// Callers take a Generator so tests can pin IDs.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so run IDs order by start time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Fixed always returns id.
func Fixed(id string) Generator {
	return func() string { return id }
}

// RunPrefix scopes check-run identifiers.
const RunPrefix = "run_"

// Run is the default check-run generator.
var Run Generator = Prefixed(RunPrefix, UUIDv7())

// ParseRun validates a run ID and returns its UUID part.
func ParseRun(id string) (string, error) {
	rest, ok := strings.CutPrefix(id, RunPrefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q lacks %q prefix", id, RunPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}
