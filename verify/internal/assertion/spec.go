// Package assertion evaluates declarative page assertions against a
// queryable page representation.
//
// The spec document is externally authored and open-ended: three
// independent rule lists with permissive defaults, validated defensively
// rather than trusted. Rules never short-circuit; a single evaluation
// surfaces every violation at once.
package assertion

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MustHaveRule requires a selector to match at least MinCount elements.
type MustHaveRule struct {
	Selector string `yaml:"selector" json:"selector"`
	MinCount int    `yaml:"minCount" json:"minCount"`
}

// TextContainsRule requires the first element matching Selector to
// contain Contains in its rendered text. A missing element is treated
// as empty text, which fails unless Contains is also empty.
type TextContainsRule struct {
	Selector string `yaml:"selector" json:"selector"`
	Contains string `yaml:"contains" json:"contains"`
}

// NotPresentRule requires that no element matches Selector.
type NotPresentRule struct {
	Selector string `yaml:"selector" json:"selector"`
}

// Spec is the assertion document. All three lists are optional.
type Spec struct {
	MustHave     []MustHaveRule     `yaml:"mustHave" json:"mustHave"`
	TextContains []TextContainsRule `yaml:"textContains" json:"textContains"`
	NotPresent   []NotPresentRule   `yaml:"notPresent" json:"notPresent"`
}

// Parse decodes a spec document. YAML and JSON both work: the asserts
// files the surrounding agent seeds are JSON, which the YAML parser
// accepts as-is.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("assertion: parse spec: %w", err)
	}
	return &s, nil
}

// Load reads a spec document from disk. A missing file is not an error:
// it returns a nil spec, meaning no spec-driven assertions apply.
func Load(path string) (*Spec, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("assertion: read spec: %w", err)
	}
	return Parse(data)
}

// Rules returns the total number of rules across all categories.
func (s *Spec) Rules() int {
	if s == nil {
		return 0
	}
	return len(s.MustHave) + len(s.TextContains) + len(s.NotPresent)
}
