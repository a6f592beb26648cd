// Package scope decides where a learning belongs: in its skill file,
// or promoted to the global knowledge file shared across repositories.
//
// The decision combines two signals. Weighted indicator patterns score
// how repository-specific or universal the content reads, and the
// ledger's cross-repository evidence overrides the textual heuristics
// once enough repositories have independently surfaced the same
// fingerprint.
package scope

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/fingerprint"
	"github.com/fyrsmithlabs/reflectd/internal/ledger"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// Scope is a recommended placement for a learning.
type Scope string

const (
	// ScopeSkill keeps the learning in its skill file.
	ScopeSkill Scope = "skill"

	// ScopeGlobal places the learning in the global knowledge file.
	ScopeGlobal Scope = "global"
)

// Ledger is the subset of ledger operations the analyzer consults for
// cross-repository evidence. A nil Ledger degrades to pure heuristics.
type Ledger interface {
	GetLearning(ctx context.Context, fp string) (*ledger.Learning, error)
	GetPromotionCandidates(ctx context.Context, threshold int) ([]*ledger.Learning, error)
}

// Scores holds the weighted indicator totals for one piece of content.
type Scores struct {
	Project float64 `json:"project"`
	Global  float64 `json:"global"`
}

// CrossRepo summarizes the ledger's evidence for a fingerprint.
// Available is false when no ledger was wired in, which keeps "no
// ledger" distinguishable from "ledger has never seen this".
type CrossRepo struct {
	Available   bool     `json:"available"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	RepoCount   int      `json:"repo_count"`
	Repos       []string `json:"repos"`
	Status      string   `json:"status,omitempty"`
	Count       int      `json:"count,omitempty"`
}

// Analysis is the full scope decision for one learning.
type Analysis struct {
	Content              string    `json:"content"`
	SkillName            string    `json:"skill_name"`
	RecommendedScope     Scope     `json:"recommended_scope"`
	Reasons              []string  `json:"reasons"`
	Scores               Scores    `json:"scores"`
	CrossRepo            CrossRepo `json:"cross_repo"`
	EligibleForPromotion bool      `json:"eligible_for_promotion"`
	PromotionThreshold   int       `json:"promotion_threshold"`
}

// Suggestion is one promotion candidate that the analyzer also
// recommends for global scope.
type Suggestion struct {
	Fingerprint string    `json:"fingerprint"`
	Content     string    `json:"content"`
	SkillName   string    `json:"skill_name"`
	RepoCount   int       `json:"repo_count"`
	TotalCount  int       `json:"total_count"`
	Analysis    *Analysis `json:"analysis"`
}

// Analyzer decides learning scope from indicator scores and ledger
// evidence.
type Analyzer struct {
	ledger    Ledger
	threshold int
	logger    *logging.Logger
}

// NewAnalyzer builds an analyzer. ledger may be nil, in which case
// cross-repository checks report Available=false and the decision
// falls back to indicator scores alone.
func NewAnalyzer(ledger Ledger, threshold int, logger *logging.Logger) *Analyzer {
	if threshold < 1 {
		threshold = 2
	}
	return &Analyzer{
		ledger:    ledger,
		threshold: threshold,
		logger:    logger.Named("scope"),
	}
}

// CalculateScores returns the project and global indicator totals for
// content. Scoring is case-insensitive.
func (a *Analyzer) CalculateScores(content string) Scores {
	text := strings.ToLower(content)
	return Scores{
		Project: scoreIndicators(projectIndicators, text),
		Global:  scoreIndicators(globalIndicators, text),
	}
}

// checkCrossRepo looks up the content's fingerprint in the ledger.
func (a *Analyzer) checkCrossRepo(ctx context.Context, content string) CrossRepo {
	if a.ledger == nil {
		return CrossRepo{Available: false, Repos: []string{}}
	}

	fp := fingerprint.Fingerprint(content)
	learning, err := a.ledger.GetLearning(ctx, fp)
	if err != nil {
		// Not found and transient errors both read as "no evidence".
		return CrossRepo{Available: true, Fingerprint: fp, Repos: []string{}}
	}

	return CrossRepo{
		Available:   true,
		Fingerprint: fp,
		RepoCount:   learning.RepoCount(),
		Repos:       learning.RepoIDs,
		Status:      string(learning.Status),
		Count:       learning.Count,
	}
}

// Analyze runs the full scope decision for one learning.
//
// Cross-repository evidence at or above the promotion threshold always
// recommends global, whether or not promotion already happened. Below
// the threshold, strongly global-scored content (more than 1.5x the
// project score and at least 4) recommends global; everything else
// stays at skill scope.
func (a *Analyzer) Analyze(ctx context.Context, content, skillName string) *Analysis {
	if skillName == "" {
		skillName = "general"
	}

	scores := a.CalculateScores(content)
	crossRepo := a.checkCrossRepo(ctx, content)

	recommended := ScopeSkill
	var reasons []string

	switch {
	case crossRepo.RepoCount >= a.threshold:
		recommended = ScopeGlobal
		if crossRepo.Status == string(ledger.StatusPromoted) {
			reasons = append(reasons, "Already promoted to global")
		} else {
			reasons = append(reasons, fmt.Sprintf("Seen in %d repos, promote to global", crossRepo.RepoCount))
		}

	case scores.Global > scores.Project*1.5 && scores.Global >= 4:
		recommended = ScopeGlobal
		reasons = append(reasons, fmt.Sprintf("Strong global indicators (score: %.1f)", scores.Global))

	case scores.Project > scores.Global*1.5 && scores.Project >= 4:
		recommended = ScopeSkill
		reasons = append(reasons, fmt.Sprintf("Strong project indicators (score: %.1f)", scores.Project))

	default:
		recommended = ScopeSkill
		reasons = append(reasons, "Default: keep in skill scope")
	}

	// A skill-scoped learning with any cross-repo presence and a global
	// score holding its own against the project score is worth watching
	// as a future promotion.
	eligible := recommended == ScopeSkill &&
		crossRepo.RepoCount >= 1 &&
		scores.Global >= scores.Project*0.5

	a.logger.Debug(ctx, "scope analyzed",
		zap.String("scope", string(recommended)),
		zap.Float64("project_score", scores.Project),
		zap.Float64("global_score", scores.Global),
		zap.Int("repo_count", crossRepo.RepoCount))

	return &Analysis{
		Content:              truncate(content, 100),
		SkillName:            skillName,
		RecommendedScope:     recommended,
		Reasons:              reasons,
		Scores:               scores,
		CrossRepo:            crossRepo,
		EligibleForPromotion: eligible,
		PromotionThreshold:   a.threshold,
	}
}

// ShouldPromote reports whether the analyzer recommends global scope
// for this content.
func (a *Analyzer) ShouldPromote(ctx context.Context, content string) bool {
	return a.Analyze(ctx, content, "").RecommendedScope == ScopeGlobal
}

// PromotionSuggestions returns the ledger's promotion candidates that
// the analyzer also recommends for global scope.
func (a *Analyzer) PromotionSuggestions(ctx context.Context) ([]*Suggestion, error) {
	if a.ledger == nil {
		return nil, nil
	}

	candidates, err := a.ledger.GetPromotionCandidates(ctx, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to get promotion candidates: %w", err)
	}

	var suggestions []*Suggestion
	for _, candidate := range candidates {
		analysis := a.Analyze(ctx, candidate.Content, candidate.SkillName)
		if analysis.RecommendedScope != ScopeGlobal {
			continue
		}
		suggestions = append(suggestions, &Suggestion{
			Fingerprint: candidate.Fingerprint,
			Content:     candidate.Content,
			SkillName:   candidate.SkillName,
			RepoCount:   candidate.RepoCount(),
			TotalCount:  candidate.Count,
			Analysis:    analysis,
		})
	}
	return suggestions, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
