package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/reflectd/internal/fingerprint"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// Store is the system of record for learnings and promotion history,
// backed by an embedded SQLite database.
//
// A single sql.DB connection (MaxOpenConns=1) plus per-fingerprint
// transactions serialize read-modify-write cycles, so concurrent
// recordings of the same fingerprint never lose an increment or a
// repository insertion.
type Store struct {
	db     *sql.DB
	repoID string
	logger *logging.Logger
}

// NewStore opens (creating if needed) the ledger database at path.
//
// repoID identifies the invoking repository; it is added to the repo set
// of every learning recorded through this store. Compute it once with
// fingerprint.RepoID and inject it here so the core never inspects the
// environment itself.
func NewStore(path, repoID string, logger *logging.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// modernc.org/sqlite serializes all access through one connection;
	// a second connection would only contend on the file lock.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		repoID: repoID,
		logger: logger.Named("ledger"),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	return s, nil
}

// migrate creates tables and indexes if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learnings (
		id TEXT PRIMARY KEY,
		fingerprint TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL,
		learning_type TEXT,
		skill_name TEXT,
		repo_ids TEXT DEFAULT '[]',
		count INTEGER DEFAULT 1,
		confidence REAL DEFAULT 0.5,
		status TEXT DEFAULT 'pending',
		first_seen TEXT,
		last_seen TEXT,
		promoted_at TEXT
	);

	CREATE TABLE IF NOT EXISTS promotions (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		from_scope TEXT,
		to_scope TEXT,
		reason TEXT,
		promoted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fingerprint ON learnings(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_status ON learnings(status);
	CREATE INDEX IF NOT EXISTS idx_skill ON learnings(skill_name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordLearning records one occurrence of a learning.
//
// If the fingerprint is new, a Learning row is created with this store's
// repository in its repo set and count 1. If it exists, the repository is
// added to the set only if absent, the count is incremented
// unconditionally (every call counts, even from the same repository),
// the confidence high-water mark is raised if the new value is higher,
// and last_seen advances.
//
// The read-modify-write runs inside a transaction so concurrent
// recordings of the same fingerprint serialize cleanly.
func (s *Store) RecordLearning(ctx context.Context, content string, learningType LearningType, skillName string, confidence float64) (*RecordResult, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, ErrInvalidConfidence
	}
	if skillName == "" {
		skillName = "general"
	}

	fp := fingerprint.Fingerprint(content)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		repoJSON     string
		count        int
		existingConf float64
	)
	err = tx.QueryRowContext(ctx,
		"SELECT repo_ids, count, confidence FROM learnings WHERE fingerprint = ?", fp,
	).Scan(&repoJSON, &count, &existingConf)

	var result *RecordResult
	switch {
	case err == sql.ErrNoRows:
		repoIDs, _ := json.Marshal([]string{s.repoID})
		_, err = tx.ExecContext(ctx, `
			INSERT INTO learnings
			(id, fingerprint, content, learning_type, skill_name, repo_ids,
			 confidence, status, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), fp, content, string(learningType), skillName,
			string(repoIDs), confidence, string(StatusPending),
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("failed to insert learning: %w", err)
		}
		result = &RecordResult{Action: ActionCreated, Fingerprint: fp, RepoCount: 1, TotalCount: 1}

	case err != nil:
		return nil, fmt.Errorf("failed to query learning: %w", err)

	default:
		repoIDs := parseRepoIDs(repoJSON)
		if !containsRepo(repoIDs, s.repoID) {
			repoIDs = append(repoIDs, s.repoID)
		}
		merged, _ := json.Marshal(repoIDs)
		if confidence < existingConf {
			confidence = existingConf
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE learnings
			SET repo_ids = ?, count = count + 1, last_seen = ?, confidence = ?
			WHERE fingerprint = ?`,
			string(merged), now.Format(time.RFC3339Nano), confidence, fp)
		if err != nil {
			return nil, fmt.Errorf("failed to update learning: %w", err)
		}
		result = &RecordResult{Action: ActionUpdated, Fingerprint: fp, RepoCount: len(repoIDs), TotalCount: count + 1}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit learning: %w", err)
	}

	s.logger.Debug(ctx, "learning recorded",
		zap.String("fingerprint", fp),
		zap.String("action", string(result.Action)),
		zap.Int("repo_count", result.RepoCount),
		zap.Int("total_count", result.TotalCount))

	return result, nil
}

const learningColumns = `id, fingerprint, content, learning_type, skill_name,
	repo_ids, count, confidence, status, first_seen, last_seen, promoted_at`

// GetLearning returns the learning for a fingerprint, or
// ErrLearningNotFound if no such fingerprint was ever recorded.
func (s *Store) GetLearning(ctx context.Context, fp string) (*Learning, error) {
	if fp == "" {
		return nil, ErrEmptyFingerprint
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+learningColumns+" FROM learnings WHERE fingerprint = ?", fp)

	learning, err := scanLearning(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrLearningNotFound, fp)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning: %w", err)
	}
	return learning, nil
}

// GetPromotionCandidates returns unpromoted learnings seen in at least
// threshold distinct repositories, most corroborated and most recently
// seen first.
func (s *Store) GetPromotionCandidates(ctx context.Context, threshold int) ([]*Learning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+learningColumns+` FROM learnings
		WHERE status != ? AND json_array_length(repo_ids) >= ?
		ORDER BY count DESC, last_seen DESC`,
		string(StatusPromoted), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotion candidates: %w", err)
	}
	defer rows.Close()

	return s.collectLearnings(ctx, rows)
}

// CheckPromotionEligibility reports whether a fingerprint currently
// qualifies for promotion at the given threshold.
func (s *Store) CheckPromotionEligibility(ctx context.Context, fp string, threshold int) (*Eligibility, error) {
	learning, err := s.GetLearning(ctx, fp)
	if err != nil {
		if errors.Is(err, ErrLearningNotFound) {
			return &Eligibility{
				Eligible:    false,
				Fingerprint: fp,
				Threshold:   threshold,
				Reason:      "Learning not found",
			}, nil
		}
		return nil, err
	}

	repoCount := learning.RepoCount()

	if learning.Status == StatusPromoted {
		return &Eligibility{
			Eligible:    false,
			Fingerprint: fp,
			RepoCount:   repoCount,
			Threshold:   threshold,
			Reason:      "Already promoted",
		}, nil
	}

	elig := &Eligibility{
		Eligible:    repoCount >= threshold,
		Fingerprint: fp,
		Content:     learning.Content,
		SkillName:   learning.SkillName,
		RepoCount:   repoCount,
		Threshold:   threshold,
	}
	if elig.Eligible {
		elig.Reason = "Ready for promotion"
	} else {
		elig.Reason = fmt.Sprintf("Seen in %d/%d repos", repoCount, threshold)
	}
	return elig, nil
}

// MarkPromoted transitions a learning to promoted status and appends a
// Promotion audit record.
//
// The status update is idempotent: re-marking an already-promoted row
// changes nothing (promoted_at is set exactly once), but the audit record
// is appended on every call, so the promotions table is a complete
// history of promotion events.
func (s *Store) MarkPromoted(ctx context.Context, fp, reason string) error {
	if fp == "" {
		return ErrEmptyFingerprint
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE learnings
		SET status = ?, promoted_at = COALESCE(promoted_at, ?)
		WHERE fingerprint = ?`,
		string(StatusPromoted), now, fp)
	if err != nil {
		return fmt.Errorf("failed to mark promoted: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrLearningNotFound, fp)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO promotions (id, fingerprint, from_scope, to_scope, reason, promoted_at)
		VALUES (?, ?, 'skill', 'global', ?, ?)`,
		uuid.New().String(), fp, reason, now)
	if err != nil {
		return fmt.Errorf("failed to record promotion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit promotion: %w", err)
	}

	s.logger.Info(ctx, "learning promoted",
		zap.String("fingerprint", fp),
		zap.String("reason", reason))
	return nil
}

// Promotions returns the audit records for a fingerprint, oldest first.
func (s *Store) Promotions(ctx context.Context, fp string) ([]*Promotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, from_scope, to_scope, reason, promoted_at
		FROM promotions WHERE fingerprint = ? ORDER BY promoted_at`, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	defer rows.Close()

	var promotions []*Promotion
	for rows.Next() {
		p := &Promotion{}
		var promotedAt string
		if err := rows.Scan(&p.ID, &p.Fingerprint, &p.FromScope, &p.ToScope, &p.Reason, &promotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		p.PromotedAt = parseTime(promotedAt)
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

// Stats summarizes the ledger: totals, breakdowns by status and skill
// (top 10 by volume), multi-repo and promotion-eligible counts, and the
// total number of promotion events.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus: map[string]int{},
		BySkill:  map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM learnings").Scan(&stats.TotalLearnings); err != nil {
		return nil, fmt.Errorf("failed to count learnings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM learnings GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		if status == "" {
			status = string(StatusPending)
		}
		stats.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT skill_name, COUNT(*) as count FROM learnings
		GROUP BY skill_name ORDER BY count DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill counts: %w", err)
	}
	for rows.Next() {
		var skill string
		var count int
		if err := rows.Scan(&skill, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan skill count: %w", err)
		}
		stats.BySkill[skill] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM learnings WHERE json_array_length(repo_ids) >= 2",
	).Scan(&stats.MultiRepo); err != nil {
		return nil, fmt.Errorf("failed to count multi-repo learnings: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM learnings
		WHERE status != ? AND json_array_length(repo_ids) >= 2`,
		string(StatusPromoted),
	).Scan(&stats.PromotionEligible); err != nil {
		return nil, fmt.Errorf("failed to count eligible learnings: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM promotions").Scan(&stats.TotalPromotions); err != nil {
		return nil, fmt.Errorf("failed to count promotions: %w", err)
	}

	return stats, nil
}

// Search returns learnings whose content contains the query substring,
// most recently seen first, bounded by limit.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Learning, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+learningColumns+` FROM learnings
		WHERE content LIKE ?
		ORDER BY last_seen DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search learnings: %w", err)
	}
	defer rows.Close()

	return s.collectLearnings(ctx, rows)
}

// SkillLearnings returns all learnings for one skill, most recently
// seen first.
func (s *Store) SkillLearnings(ctx context.Context, skillName string) ([]*Learning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+learningColumns+` FROM learnings
		WHERE skill_name = ? ORDER BY last_seen DESC`, skillName)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill learnings: %w", err)
	}
	defer rows.Close()

	return s.collectLearnings(ctx, rows)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// collectLearnings scans all rows, skipping individually malformed ones
// rather than failing the whole read.
func (s *Store) collectLearnings(ctx context.Context, rows *sql.Rows) ([]*Learning, error) {
	var learnings []*Learning
	for rows.Next() {
		learning, err := scanLearning(rows)
		if err != nil {
			s.logger.Warn(ctx, "skipping malformed learning row", zap.Error(err))
			continue
		}
		learnings = append(learnings, learning)
	}
	return learnings, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanLearning.
type scanner interface {
	Scan(dest ...any) error
}

// scanLearning materializes one learnings row. Malformed repo_ids JSON
// degrades to an empty set rather than failing the scan.
func scanLearning(row scanner) (*Learning, error) {
	var (
		l            Learning
		learningType string
		status       string
		repoJSON     string
		firstSeen    string
		lastSeen     string
		promotedAt   sql.NullString
	)

	err := row.Scan(&l.ID, &l.Fingerprint, &l.Content, &learningType, &l.SkillName,
		&repoJSON, &l.Count, &l.Confidence, &status, &firstSeen, &lastSeen, &promotedAt)
	if err != nil {
		return nil, err
	}

	l.LearningType = LearningType(learningType)
	l.Status = Status(status)
	if l.Status == "" {
		l.Status = StatusPending
	}
	l.RepoIDs = parseRepoIDs(repoJSON)
	l.FirstSeen = parseTime(firstSeen)
	l.LastSeen = parseTime(lastSeen)
	if promotedAt.Valid && promotedAt.String != "" {
		t := parseTime(promotedAt.String)
		l.PromotedAt = &t
	}

	return &l, nil
}

func parseRepoIDs(repoJSON string) []string {
	var ids []string
	if err := json.Unmarshal([]byte(repoJSON), &ids); err != nil {
		return []string{}
	}
	return ids
}

func containsRepo(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
