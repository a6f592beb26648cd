package scope

import "regexp"

// indicator pairs a compiled pattern with the weight it contributes to a
// scope score when the pattern matches the learning content.
type indicator struct {
	pattern *regexp.Regexp
	weight  float64
}

// projectIndicators match content tied to one repository: concrete
// paths, environment wiring, named hosts, monorepo tooling invocations.
var projectIndicators = compileIndicators([]rawIndicator{
	// Path patterns
	{`src/components/`, 2},
	{`apps/`, 2},
	{`packages/`, 2},
	{`\.env\.`, 2},
	{`docker-compose`, 2},

	// Project-specific terms
	{`\b(client|customer|vendor)\s+name`, 2},
	{`\b(internal|proprietary)\b`, 2},
	{`\bapi\.[a-z]+\.com\b`, 3},
	{`\blocalhost:\d+`, 2},

	// Monorepo tooling
	{`pnpm\s+-C\s+packages/`, 3},
	{`nx\s+`, 2},
	{`turbo\b`, 2},
})

// globalIndicators match advice that transfers between repositories:
// universal engineering practice, language-agnostic tool preferences,
// and imperative phrasing in English or German.
var globalIndicators = compileIndicators([]rawIndicator{
	// Universal engineering behaviors
	{`\brun\s+tests?\b`, 3},
	{`\bsmall\s+(pr|commit)`, 2},
	{`\bcommit\s+message`, 2},
	{`\bcode\s+review`, 2},
	{`\bverify\s+before`, 2},
	{`\bbackup\s+first`, 2},
	{`\balways\s+check`, 2},
	{`\bnever\s+commit\s+secrets`, 3},

	// Common tools, language-agnostic advice
	{`\bgit\b`, 2},
	{`\bdocker\b`, 2},
	{`\buse\s+(uv|pip|npm|yarn|pnpm)\b`, 2},
	{`\buse\s+(pytest|jest|vitest)\b`, 2},
	{`\buse\s+(ruff|eslint|prettier)\b`, 2},

	// German imperatives
	{`\bimmer\s+`, 2},
	{`\bniemals?\s+`, 2},
	{`\bverwende\s+`, 2},
	{`\bbenutze\s+`, 2},
	{`\bstatt\b`, 2},
})

type rawIndicator struct {
	pattern string
	weight  float64
}

func compileIndicators(raw []rawIndicator) []indicator {
	compiled := make([]indicator, 0, len(raw))
	for _, r := range raw {
		compiled = append(compiled, indicator{
			pattern: regexp.MustCompile(`(?i)` + r.pattern),
			weight:  r.weight,
		})
	}
	return compiled
}

// scoreIndicators sums the weights of every matching indicator. Each
// indicator contributes at most once regardless of match count.
func scoreIndicators(indicators []indicator, text string) float64 {
	var score float64
	for _, ind := range indicators {
		if ind.pattern.MatchString(text) {
			score += ind.weight
		}
	}
	return score
}
