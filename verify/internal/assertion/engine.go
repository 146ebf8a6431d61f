package assertion

import (
	"log/slog"
	"strings"
)

// Querier is the page-query capability the engine runs against. A live
// browser page and a parsed HTML snapshot both implement it.
type Querier interface {
	// Count returns how many elements match a CSS selector.
	Count(selector string) (int, error)

	// Text returns the rendered text of the first element matching the
	// selector. found is false when no element matches; the engine then
	// treats the text as empty rather than failing the query.
	Text(selector string) (text string, found bool, err error)
}

// Evaluate runs every rule of the spec against the page and returns the
// number of violations. A nil spec evaluates to zero. Rules are checked
// exhaustively in document order; per-rule diagnostics go to the logger,
// the caller decides pass/fail purely from the count.
func Evaluate(q Querier, spec *Spec, logger *slog.Logger) int {
	if spec == nil {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0

	for _, rule := range spec.MustHave {
		if rule.Selector == "" {
			logger.Warn("assert: skipping mustHave rule without selector")
			continue
		}
		min := rule.MinCount
		if min <= 0 {
			min = 1
		}
		count, err := q.Count(rule.Selector)
		if err != nil {
			failures++
			logger.Error("assert: mustHave query failed",
				"selector", rule.Selector, "error", err)
			continue
		}
		if count < min {
			failures++
			logger.Warn("assert: mustHave violated",
				"selector", rule.Selector, "count", count, "min", min)
		}
	}

	for _, rule := range spec.TextContains {
		if rule.Selector == "" {
			logger.Warn("assert: skipping textContains rule without selector")
			continue
		}
		text, found, err := q.Text(rule.Selector)
		if err != nil {
			failures++
			logger.Error("assert: textContains query failed",
				"selector", rule.Selector, "error", err)
			continue
		}
		if !found {
			text = ""
		}
		if !strings.Contains(text, rule.Contains) {
			failures++
			logger.Warn("assert: textContains violated",
				"selector", rule.Selector,
				"expected", rule.Contains,
				"observed", clip(text, 200),
				"element_found", found)
		}
	}

	for _, rule := range spec.NotPresent {
		if rule.Selector == "" {
			logger.Warn("assert: skipping notPresent rule without selector")
			continue
		}
		count, err := q.Count(rule.Selector)
		if err != nil {
			failures++
			logger.Error("assert: notPresent query failed",
				"selector", rule.Selector, "error", err)
			continue
		}
		if count > 0 {
			failures++
			logger.Warn("assert: notPresent violated",
				"selector", rule.Selector, "count", count)
		}
	}

	return failures
}

func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
