package bridge

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultIgnoredFields are the control fields the form plugin posts
// alongside user input.
var DefaultIgnoredFields = []string{"_wpcf7*", "_wpnonce", "g-recaptcha-response"}

// FieldFilter drops posted fields whose name matches any pattern.
type FieldFilter struct {
	patterns []glob.Glob
}

// NewFieldFilter compiles shell-style patterns such as "_wpcf7*".
func NewFieldFilter(patterns ...string) (*FieldFilter, error) {
	f := &FieldFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid field pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Ignored reports whether the field name is filtered out.
func (f *FieldFilter) Ignored(name string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Clean returns a copy of data without ignored fields.
func (f *FieldFilter) Clean(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if f.Ignored(k) {
			continue
		}
		out[k] = v
	}
	return out
}
