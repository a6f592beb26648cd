// Package meta tracks reviewer feedback on proposed learnings and
// scores extraction patterns by how often their proposals get accepted.
//
// The module is passive by default: LogFeedback only appends to a
// JSONL log and never errors into the caller's workflow, and
// ConfidenceAdjustment returns zero unless the caller explicitly opts
// in. Scores are recomputed from the log on demand; the cached score
// file is a convenience, not a source of truth.
package meta

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

const (
	feedbackLogName   = "feedback-log.jsonl"
	patternScoresName = "pattern-scores.json"
)

// Scorer reads and writes meta-learning state under one directory.
type Scorer struct {
	dir        string
	minSamples int
	logger     *logging.Logger
}

// NewScorer builds a scorer rooted at dir.
func NewScorer(dir string, minSamples int, logger *logging.Logger) *Scorer {
	if minSamples < 1 {
		minSamples = DefaultMinSamples
	}
	return &Scorer{
		dir:        dir,
		minSamples: minSamples,
		logger:     logger.Named("meta"),
	}
}

func (s *Scorer) logPath() string    { return filepath.Join(s.dir, feedbackLogName) }
func (s *Scorer) scoresPath() string { return filepath.Join(s.dir, patternScoresName) }

// LogFeedback appends one feedback entry to the log.
//
// This is the single swallow boundary of the module: it reports success
// as a bool and never returns an error, because recording feedback must
// not be able to break the review workflow that calls it.
func (s *Scorer) LogFeedback(ctx context.Context, entry FeedbackEntry) bool {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.logger.Warn(ctx, "failed to create meta directory", zap.Error(err))
		return false
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if len(entry.SignalContent) > maxSignalContent {
		entry.SignalContent = entry.SignalContent[:maxSignalContent]
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn(ctx, "failed to marshal feedback entry", zap.Error(err))
		return false
	}

	f, err := os.OpenFile(s.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		s.logger.Warn(ctx, "failed to open feedback log", zap.Error(err))
		return false
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		s.logger.Warn(ctx, "failed to append feedback entry", zap.Error(err))
		return false
	}
	return true
}

// patternKey groups feedback by confidence level and pattern type.
func patternKey(level ConfidenceLevel, patternType string) string {
	if level == "" {
		level = "UNKNOWN"
	}
	if patternType == "" {
		patternType = "unknown"
	}
	return fmt.Sprintf("%s:%s", level, patternType)
}

// ComputePatternScores scans the full feedback log and aggregates
// acceptance rates per pattern key. Malformed lines are skipped; a
// missing log yields an empty map.
func (s *Scorer) ComputePatternScores(ctx context.Context) (map[string]*PatternScore, error) {
	f, err := os.Open(s.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*PatternScore{}, nil
		}
		return nil, fmt.Errorf("failed to open feedback log: %w", err)
	}
	defer f.Close()

	type accumulator struct {
		accept, modify, skip int
		skills               map[string]struct{}
		lastSeen             string
	}
	acc := map[string]*accumulator{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry FeedbackEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			s.logger.Debug(ctx, "skipping malformed feedback line", zap.Error(err))
			continue
		}

		key := patternKey(entry.ConfidenceLevel, entry.PatternType)
		a := acc[key]
		if a == nil {
			a = &accumulator{skills: map[string]struct{}{}}
			acc[key] = a
		}

		switch entry.Decision {
		case DecisionAccept:
			a.accept++
		case DecisionModify:
			a.modify++
		default:
			// skip, quit, and anything unrecognized all count against
			// the pattern.
			a.skip++
		}

		skill := entry.SkillName
		if skill == "" {
			skill = "unknown"
		}
		a.skills[skill] = struct{}{}
		a.lastSeen = entry.Timestamp.Format(time.RFC3339)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback log: %w", err)
	}

	scores := make(map[string]*PatternScore, len(acc))
	for key, a := range acc {
		total := a.accept + a.modify + a.skip
		if total == 0 {
			continue
		}
		acceptRate := float64(a.accept+a.modify) / float64(total)

		skills := make([]string, 0, len(a.skills))
		for skill := range a.skills {
			skills = append(skills, skill)
		}
		sort.Strings(skills)

		scores[key] = &PatternScore{
			AcceptCount:    a.accept,
			ModifyCount:    a.modify,
			SkipCount:      a.skip,
			Total:          total,
			AcceptanceRate: acceptRate,
			PureAcceptRate: float64(a.accept) / float64(total),
			Status:         s.status(total, acceptRate),
			Skills:         skills,
			LastSeen:       a.lastSeen,
		}
	}
	return scores, nil
}

// status classifies a pattern's health from its sample count and
// acceptance rate.
func (s *Scorer) status(total int, acceptRate float64) string {
	switch {
	case total < s.minSamples:
		return StatusInsufficientData
	case acceptRate < DeprecationThreshold:
		return StatusDeprecated
	case acceptRate < ReviewThreshold:
		return StatusNeedsReview
	case acceptRate >= PromotionThreshold:
		return StatusExcellent
	default:
		return StatusHealthy
	}
}

// SavePatternScores recomputes scores and writes the cache file.
func (s *Scorer) SavePatternScores(ctx context.Context) error {
	scores, err := s.ComputePatternScores(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create meta directory: %w", err)
	}

	doc := ScoreFile{
		ComputedAt: time.Now().UTC(),
		Thresholds: ScoreThresholds{
			Deprecation: DeprecationThreshold,
			Promotion:   PromotionThreshold,
			MinSamples:  s.minSamples,
		},
		Patterns: scores,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pattern scores: %w", err)
	}
	if err := os.WriteFile(s.scoresPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write pattern scores: %w", err)
	}
	return nil
}

// ConfidenceAdjustment returns the confidence delta earned by a
// pattern's track record, with a human-readable reason.
//
// With useMeta false the function is inert and always returns (0, "").
// Patterns with too little data also contribute nothing.
func (s *Scorer) ConfidenceAdjustment(ctx context.Context, level ConfidenceLevel, patternType string, useMeta bool) (float64, string) {
	if !useMeta {
		return 0, ""
	}

	scores, err := s.ComputePatternScores(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to compute pattern scores", zap.Error(err))
		return 0, ""
	}

	score, ok := scores[patternKey(level, patternType)]
	if !ok {
		return 0, ""
	}

	pct := score.AcceptanceRate * 100
	switch score.Status {
	case StatusDeprecated:
		return -0.30, fmt.Sprintf("Pattern has %.0f%% acceptance rate", pct)
	case StatusNeedsReview:
		return -0.15, fmt.Sprintf("Pattern needs review (%.0f%% acceptance)", pct)
	case StatusExcellent:
		return 0.10, fmt.Sprintf("Pattern highly trusted (%.0f%% acceptance)", pct)
	default:
		return 0, ""
	}
}

// Statistics builds the full meta-learning health report.
func (s *Scorer) Statistics(ctx context.Context) (*Statistics, error) {
	if _, err := os.Stat(s.logPath()); os.IsNotExist(err) {
		return &Statistics{
			Status:  "no_data",
			Message: "No feedback recorded yet. Review proposed learnings to start collecting data.",
		}, nil
	}

	scores, err := s.ComputePatternScores(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.readEntries()
	if err != nil {
		return nil, err
	}

	decisions := map[string]int{}
	skills := map[string]struct{}{}
	for _, entry := range entries {
		decision := string(entry.Decision)
		if decision == "" {
			decision = "unknown"
		}
		decisions[decision]++

		skill := entry.SkillName
		if skill == "" {
			skill = "unknown"
		}
		skills[skill] = struct{}{}
	}

	skillList := make([]string, 0, len(skills))
	for skill := range skills {
		skillList = append(skillList, skill)
	}
	sort.Strings(skillList)

	byStatus := map[string][]*PatternEntry{
		StatusExcellent:   {},
		StatusHealthy:     {},
		StatusNeedsReview: {},
		StatusDeprecated:  {},
	}
	keys := make([]string, 0, len(scores))
	for key := range scores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		score := scores[key]
		if _, ok := byStatus[score.Status]; ok {
			byStatus[score.Status] = append(byStatus[score.Status], &PatternEntry{Pattern: key, PatternScore: score})
		}
	}

	return &Statistics{
		Status:         "active",
		TotalFeedback:  len(entries),
		Decisions:      decisions,
		SkillsAnalyzed: skillList,
		OverallHealth:  overallHealth(len(scores), byStatus),
		PatternSummary: map[string]int{
			"total":        len(scores),
			"excellent":    len(byStatus[StatusExcellent]),
			"healthy":      len(byStatus[StatusHealthy]),
			"needs_review": len(byStatus[StatusNeedsReview]),
			"deprecated":   len(byStatus[StatusDeprecated]),
		},
		Patterns: byStatus,
		Thresholds: map[string]string{
			"deprecation": fmt.Sprintf("<%.0f%%", DeprecationThreshold*100),
			"promotion":   fmt.Sprintf(">%.0f%%", PromotionThreshold*100),
			"min_samples": fmt.Sprintf("%d", s.minSamples),
		},
	}, nil
}

func overallHealth(total int, byStatus map[string][]*PatternEntry) string {
	switch {
	case total == 0:
		return "unknown"
	case float64(len(byStatus[StatusDeprecated])) > float64(total)*0.3:
		return "poor"
	case float64(len(byStatus[StatusExcellent])) > float64(total)*0.5:
		return "excellent"
	case float64(len(byStatus[StatusNeedsReview])) > float64(total)*0.3:
		return "needs_attention"
	default:
		return "good"
	}
}

// readEntries loads all well-formed feedback entries from the log.
func (s *Scorer) readEntries() ([]FeedbackEntry, error) {
	f, err := os.Open(s.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open feedback log: %w", err)
	}
	defer f.Close()

	var entries []FeedbackEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry FeedbackEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// FormatStatisticsReport renders the statistics as a terminal report.
func (s *Scorer) FormatStatisticsReport(ctx context.Context) (string, error) {
	stats, err := s.Statistics(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(&b, "%s\n  META-LEARNING STATUS\n%s\n\n", rule, rule)

	if stats.Status == "no_data" {
		fmt.Fprintf(&b, "  Status: No data collected yet\n\n  %s\n", stats.Message)
		return b.String(), nil
	}

	fmt.Fprintf(&b, "  Overall Health: %s\n", strings.ToUpper(stats.OverallHealth))
	fmt.Fprintf(&b, "  Total Feedback: %d decisions recorded\n", stats.TotalFeedback)
	fmt.Fprintf(&b, "  Skills Analyzed: %d\n\n", len(stats.SkillsAnalyzed))

	if stats.TotalFeedback > 0 {
		b.WriteString("  Decision Breakdown:\n")
		names := make([]string, 0, len(stats.Decisions))
		for name := range stats.Decisions {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Decisions[names[i]] != stats.Decisions[names[j]] {
				return stats.Decisions[names[i]] > stats.Decisions[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			count := stats.Decisions[name]
			pct := float64(count) / float64(stats.TotalFeedback) * 100
			fmt.Fprintf(&b, "    %-8s %3d (%.0f%%)\n", name, count, pct)
		}
		b.WriteString("\n")
	}

	b.WriteString("  Pattern Health:\n")
	fmt.Fprintf(&b, "    excellent:    %d\n", stats.PatternSummary["excellent"])
	fmt.Fprintf(&b, "    healthy:      %d\n", stats.PatternSummary["healthy"])
	fmt.Fprintf(&b, "    needs_review: %d\n", stats.PatternSummary["needs_review"])
	fmt.Fprintf(&b, "    deprecated:   %d\n\n", stats.PatternSummary["deprecated"])

	for _, section := range []struct {
		title  string
		status string
	}{
		{"Patterns Needing Attention", StatusDeprecated},
		{"High-Performing Patterns", StatusExcellent},
	} {
		patterns := stats.Patterns[section.status]
		if len(patterns) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", section.title)
		for i, p := range patterns {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "    - %s: %.0f%% acceptance (%d samples)\n",
				p.Pattern, p.AcceptanceRate*100, p.Total)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "  Thresholds: deprecation %s, promotion %s, min samples %s\n",
		stats.Thresholds["deprecation"], stats.Thresholds["promotion"], stats.Thresholds["min_samples"])
	b.WriteString("\n  Feedback collection is passive; use --use-meta to apply score-based adjustments.\n")

	return b.String(), nil
}

// ResetData archives the feedback log and removes the score cache.
// Without confirm it does nothing and reports false.
func (s *Scorer) ResetData(ctx context.Context, confirm bool) bool {
	if !confirm {
		return false
	}

	if _, err := os.Stat(s.logPath()); err == nil {
		backup := s.logPath() + ".backup"
		if err := os.Rename(s.logPath(), backup); err != nil {
			s.logger.Warn(ctx, "failed to archive feedback log", zap.Error(err))
			return false
		}
	}

	if err := os.Remove(s.scoresPath()); err != nil && !os.IsNotExist(err) {
		s.logger.Warn(ctx, "failed to remove pattern scores", zap.Error(err))
		return false
	}

	s.logger.Info(ctx, "meta-learning data reset")
	return true
}
