package meta

import "time"

// Decision is the reviewer's verdict on one proposed learning.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionModify Decision = "modify"
	DecisionSkip   Decision = "skip"
	DecisionQuit   Decision = "quit"
)

// ConfidenceLevel buckets the extractor's confidence in a signal.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// Pattern health statuses derived from acceptance rates.
const (
	StatusInsufficientData = "insufficient_data"
	StatusDeprecated       = "deprecated"
	StatusNeedsReview      = "needs_review"
	StatusExcellent        = "excellent"
	StatusHealthy          = "healthy"
)

// Acceptance-rate thresholds for pattern health.
const (
	DeprecationThreshold = 0.20
	ReviewThreshold      = 0.50
	PromotionThreshold   = 0.80

	// DefaultMinSamples is the feedback count below which a pattern
	// stays at insufficient_data and contributes no adjustment.
	DefaultMinSamples = 5

	// maxSignalContent bounds stored signal text per entry.
	maxSignalContent = 500
)

// FeedbackEntry is one line of the append-only feedback log.
type FeedbackEntry struct {
	Timestamp       time.Time       `json:"timestamp"`
	PatternType     string          `json:"pattern_type"`
	PatternRegex    string          `json:"pattern_regex,omitempty"`
	SkillName       string          `json:"skill_name"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	Decision        Decision        `json:"decision"`
	SignalContent   string          `json:"signal_content"`
	Modification    string          `json:"modification,omitempty"`
}

// PatternScore aggregates feedback for one confidence/type pattern key.
type PatternScore struct {
	AcceptCount    int      `json:"accept_count"`
	ModifyCount    int      `json:"modify_count"`
	SkipCount      int      `json:"skip_count"`
	Total          int      `json:"total"`
	AcceptanceRate float64  `json:"acceptance_rate"`
	PureAcceptRate float64  `json:"pure_accept_rate"`
	Status         string   `json:"status"`
	Skills         []string `json:"skills"`
	LastSeen       string   `json:"last_seen,omitempty"`
}

// ScoreFile is the cached scores document written by SavePatternScores.
type ScoreFile struct {
	ComputedAt time.Time                `json:"computed_at"`
	Thresholds ScoreThresholds          `json:"thresholds"`
	Patterns   map[string]*PatternScore `json:"patterns"`
}

// ScoreThresholds records the thresholds in effect when scores were
// computed.
type ScoreThresholds struct {
	Deprecation float64 `json:"deprecation"`
	Promotion   float64 `json:"promotion"`
	MinSamples  int     `json:"min_samples"`
}

// Statistics is the full meta-learning health report.
type Statistics struct {
	Status         string                     `json:"status"`
	Message        string                     `json:"message,omitempty"`
	TotalFeedback  int                        `json:"total_feedback"`
	Decisions      map[string]int             `json:"decisions,omitempty"`
	SkillsAnalyzed []string                   `json:"skills_analyzed,omitempty"`
	OverallHealth  string                     `json:"overall_health,omitempty"`
	PatternSummary map[string]int             `json:"pattern_summary,omitempty"`
	Patterns       map[string][]*PatternEntry `json:"patterns,omitempty"`
	Thresholds     map[string]string          `json:"thresholds,omitempty"`
}

// PatternEntry is one pattern's score annotated with its key, for the
// statistics report.
type PatternEntry struct {
	Pattern string `json:"pattern"`
	*PatternScore
}
