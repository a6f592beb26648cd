package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/fingerprint"
	"github.com/fyrsmithlabs/reflectd/internal/ledger"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// fakeLedger serves canned learnings keyed by fingerprint.
type fakeLedger struct {
	learnings  map[string]*ledger.Learning
	candidates []*ledger.Learning
}

func (f *fakeLedger) GetLearning(_ context.Context, fp string) (*ledger.Learning, error) {
	if l, ok := f.learnings[fp]; ok {
		return l, nil
	}
	return nil, ledger.ErrLearningNotFound
}

func (f *fakeLedger) GetPromotionCandidates(_ context.Context, _ int) ([]*ledger.Learning, error) {
	return f.candidates, nil
}

func newTestAnalyzer(l Ledger) *Analyzer {
	return NewAnalyzer(l, 2, logging.NewTestLogger().Logger)
}

func TestCalculateScores(t *testing.T) {
	a := newTestAnalyzer(nil)

	tests := []struct {
		name    string
		content string
		project float64
		global  float64
	}{
		{
			name:    "universal practice",
			content: "run tests before every commit, never commit secrets",
			project: 0,
			global:  6,
		},
		{
			name:    "monorepo specific",
			content: "use pnpm -C packages/web for the frontend in apps/",
			project: 7,
			global:  2, // matches "use ... pnpm"
		},
		{
			name:    "german imperative",
			content: "verwende immer uv statt pip",
			project: 0,
			global:  6,
		},
		{
			name:    "neutral",
			content: "the meeting is at noon",
			project: 0,
			global:  0,
		},
		{
			name:    "case insensitive",
			content: "ALWAYS CHECK return values",
			project: 0,
			global:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := a.CalculateScores(tt.content)
			assert.Equal(t, tt.project, scores.Project, "project score")
			assert.Equal(t, tt.global, scores.Global, "global score")
		})
	}
}

func TestAnalyzeHeuristicsOnly(t *testing.T) {
	a := newTestAnalyzer(nil)
	ctx := context.Background()

	// Strongly global content recommends global even without a ledger.
	analysis := a.Analyze(ctx, "run tests before every commit, never commit secrets", "general")
	assert.Equal(t, ScopeGlobal, analysis.RecommendedScope)
	assert.False(t, analysis.CrossRepo.Available)
	assert.Contains(t, analysis.Reasons[0], "Strong global indicators")

	// Project-heavy content stays at skill scope.
	analysis = a.Analyze(ctx, "use pnpm -C packages/web for the frontend in apps/", "frontend")
	assert.Equal(t, ScopeSkill, analysis.RecommendedScope)
	assert.Contains(t, analysis.Reasons[0], "Strong project indicators")

	// Neutral content defaults to skill scope.
	analysis = a.Analyze(ctx, "the meeting is at noon", "")
	assert.Equal(t, ScopeSkill, analysis.RecommendedScope)
	assert.Equal(t, "general", analysis.SkillName)
	assert.Equal(t, "Default: keep in skill scope", analysis.Reasons[0])
	assert.False(t, analysis.EligibleForPromotion)
}

func TestAnalyzeCrossRepoThreshold(t *testing.T) {
	content := "document architectural decisions"
	fp := fingerprint.Fingerprint(content)

	fake := &fakeLedger{learnings: map[string]*ledger.Learning{
		fp: {
			Fingerprint: fp,
			Content:     content,
			RepoIDs:     []string{"repo-a", "repo-b"},
			Count:       5,
			Status:      ledger.StatusPending,
		},
	}}
	a := newTestAnalyzer(fake)

	// Cross-repo evidence overrides neutral heuristics.
	analysis := a.Analyze(context.Background(), content, "general")
	assert.Equal(t, ScopeGlobal, analysis.RecommendedScope)
	assert.Equal(t, 2, analysis.CrossRepo.RepoCount)
	assert.Contains(t, analysis.Reasons[0], "Seen in 2 repos")
	assert.True(t, analysis.CrossRepo.Available)
}

func TestAnalyzeAlreadyPromoted(t *testing.T) {
	content := "document architectural decisions"
	fp := fingerprint.Fingerprint(content)

	fake := &fakeLedger{learnings: map[string]*ledger.Learning{
		fp: {
			Fingerprint: fp,
			Content:     content,
			RepoIDs:     []string{"repo-a", "repo-b"},
			Status:      ledger.StatusPromoted,
		},
	}}
	a := newTestAnalyzer(fake)

	analysis := a.Analyze(context.Background(), content, "general")
	assert.Equal(t, ScopeGlobal, analysis.RecommendedScope)
	assert.Equal(t, "Already promoted to global", analysis.Reasons[0])
}

func TestAnalyzeEligibleForPromotion(t *testing.T) {
	// Skill-scoped, seen in one repo, global score holding its own:
	// flagged as a future promotion candidate.
	content := "always check the docs first"
	fp := fingerprint.Fingerprint(content)

	fake := &fakeLedger{learnings: map[string]*ledger.Learning{
		fp: {
			Fingerprint: fp,
			Content:     content,
			RepoIDs:     []string{"repo-a"},
			Status:      ledger.StatusPending,
		},
	}}
	a := newTestAnalyzer(fake)

	analysis := a.Analyze(context.Background(), content, "general")
	assert.Equal(t, ScopeSkill, analysis.RecommendedScope)
	assert.True(t, analysis.EligibleForPromotion)
}

func TestAnalyzeTruncatesContent(t *testing.T) {
	a := newTestAnalyzer(nil)

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	analysis := a.Analyze(context.Background(), string(long), "general")
	assert.Len(t, analysis.Content, 103) // 100 chars plus ellipsis
}

func TestShouldPromote(t *testing.T) {
	a := newTestAnalyzer(nil)
	ctx := context.Background()

	assert.True(t, a.ShouldPromote(ctx, "run tests before every commit, never commit secrets"))
	assert.False(t, a.ShouldPromote(ctx, "the meeting is at noon"))
}

func TestPromotionSuggestions(t *testing.T) {
	universal := "run tests before every commit, never commit secrets"
	local := "use pnpm -C packages/web for the frontend in apps/"

	fake := &fakeLedger{
		learnings: map[string]*ledger.Learning{},
		candidates: []*ledger.Learning{
			{
				Fingerprint: fingerprint.Fingerprint(universal),
				Content:     universal,
				SkillName:   "general",
				RepoIDs:     []string{"repo-a", "repo-b"},
				Count:       4,
			},
			{
				Fingerprint: fingerprint.Fingerprint(local),
				Content:     local,
				SkillName:   "frontend",
				RepoIDs:     []string{"repo-a", "repo-b"},
				Count:       2,
			},
		},
	}
	a := newTestAnalyzer(fake)

	suggestions, err := a.PromotionSuggestions(context.Background())
	require.NoError(t, err)

	// The lookup map is empty, so the per-candidate decision falls back
	// to heuristics and only the universal advice qualifies.
	require.Len(t, suggestions, 1)
	assert.Equal(t, universal, suggestions[0].Content)
	assert.Equal(t, 2, suggestions[0].RepoCount)
	assert.Equal(t, 4, suggestions[0].TotalCount)
}

func TestPromotionSuggestionsNilLedger(t *testing.T) {
	a := newTestAnalyzer(nil)

	suggestions, err := a.PromotionSuggestions(context.Background())
	require.NoError(t, err)
	assert.Nil(t, suggestions)
}
