// Package safe guards the values argos turns into URLs and file paths:
// URL templates learned from an operator, identities received over the
// network, and report file names.
package safe

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxIdentity bounds the length of an identity accepted over the network.
const MaxIdentity = 256

var (
	// ErrPathTraversal is returned when a joined path escapes its base.
	ErrPathTraversal = errors.New("safe: path traversal detected")
	// ErrUnsafeScheme is returned for a template that is not http or https.
	ErrUnsafeScheme = errors.New("safe: only http and https templates are allowed")
	// ErrBadIdentity is returned for an identity that would change the
	// shape of the URL it is substituted into.
	ErrBadIdentity = errors.New("safe: identity contains URL delimiters or control characters")
)

// SafePath joins name under base and verifies the result stays there.
func SafePath(base, name string) (string, error) {
	root := filepath.Clean(base)
	cleaned := filepath.Join(root, filepath.Clean("/"+name))
	if cleaned == root || !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateTemplate checks that a URL template, once its placeholder is
// filled, is an absolute http(s) URL with a host.
func ValidateTemplate(template string) error {
	probe := strings.NewReplacer("{user}", "x", "{usuario}", "x").Replace(template)
	u, err := url.Parse(probe)
	if err != nil {
		return fmt.Errorf("safe: invalid template: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return errors.New("safe: template has no host")
	}
	return nil
}

// ValidateIdentity rejects identities that cannot be substituted raw into a
// URL path: path, query and fragment delimiters, whitespace and control
// characters. Email addresses pass.
func ValidateIdentity(s string) error {
	if s == "" {
		return errors.New("safe: identity must not be empty")
	}
	if len(s) > MaxIdentity {
		return fmt.Errorf("safe: identity too long (max %d)", MaxIdentity)
	}
	if s == "." || s == ".." {
		return ErrBadIdentity
	}
	for _, r := range s {
		switch {
		case r == '/', r == '\\', r == '?', r == '#', r == '%':
			return ErrBadIdentity
		case unicode.IsSpace(r), unicode.IsControl(r):
			return ErrBadIdentity
		}
	}
	return nil
}
