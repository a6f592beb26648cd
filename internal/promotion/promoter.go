// Package promotion copies eligible learnings from the ledger into the
// global knowledge file.
//
// Promotion is append-only on the target file: the promoter backs up
// the current file, appends a formatted entry, then marks the learning
// promoted in the ledger. A dry run stops before any of the three
// mutations.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/ledger"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/scope"
)

// ErrNotEligible indicates a learning failed its eligibility re-check
// at promotion time. The wrapped message carries the ledger's reason.
var ErrNotEligible = errors.New("learning not eligible for promotion")

// Ledger is the subset of ledger operations the promoter needs.
type Ledger interface {
	GetLearning(ctx context.Context, fp string) (*ledger.Learning, error)
	CheckPromotionEligibility(ctx context.Context, fp string, threshold int) (*ledger.Eligibility, error)
	MarkPromoted(ctx context.Context, fp, reason string) error
}

// Suggester lists promotion candidates the scope analyzer endorses.
type Suggester interface {
	PromotionSuggestions(ctx context.Context) ([]*scope.Suggestion, error)
}

// Preview describes what a promotion would append, without mutating
// anything.
type Preview struct {
	Fingerprint    string `json:"fingerprint"`
	Content        string `json:"content"`
	SkillName      string `json:"skill_name"`
	RepoCount      int    `json:"repo_count"`
	FormattedEntry string `json:"formatted_entry"`
	TargetFile     string `json:"target_file"`
}

// Result reports one completed (or dry-run) promotion.
type Result struct {
	Fingerprint string `json:"fingerprint"`
	Content     string `json:"content"`
	DryRun      bool   `json:"dry_run"`
	WouldAdd    string `json:"would_add,omitempty"`
	AddedTo     string `json:"added_to,omitempty"`
	BackupPath  string `json:"backup_path,omitempty"`
}

// BatchItem is the outcome for one candidate in a PromoteAll run.
type BatchItem struct {
	Fingerprint string `json:"fingerprint"`
	Content     string `json:"content"`
	Error       string `json:"error,omitempty"`
}

// BatchResult summarizes a PromoteAll run. A failing candidate never
// aborts the batch; it lands in Failed and the run continues.
type BatchResult struct {
	Total    int          `json:"total"`
	DryRun   bool         `json:"dry_run"`
	Promoted []*BatchItem `json:"promoted"`
	Failed   []*BatchItem `json:"failed"`
}

// Promoter appends eligible learnings to the global knowledge file.
type Promoter struct {
	ledger     Ledger
	suggester  Suggester
	globalFile string
	backupDir  string
	threshold  int
	logger     *logging.Logger
}

// NewPromoter builds a promoter writing to globalFile with backups in
// backupDir.
func NewPromoter(l Ledger, s Suggester, globalFile, backupDir string, threshold int, logger *logging.Logger) *Promoter {
	if threshold < 1 {
		threshold = 2
	}
	return &Promoter{
		ledger:     l,
		suggester:  s,
		globalFile: globalFile,
		backupDir:  backupDir,
		threshold:  threshold,
		logger:     logger.Named("promotion"),
	}
}

// Candidates returns the promotion candidates the scope analyzer also
// recommends for global scope.
func (p *Promoter) Candidates(ctx context.Context) ([]*scope.Suggestion, error) {
	return p.suggester.PromotionSuggestions(ctx)
}

// PreviewPromotion returns the entry that promoting this fingerprint
// would append. ErrLearningNotFound and ErrNotEligible pass through.
func (p *Promoter) PreviewPromotion(ctx context.Context, fp string) (*Preview, error) {
	learning, err := p.ledger.GetLearning(ctx, fp)
	if err != nil {
		return nil, err
	}

	elig, err := p.ledger.CheckPromotionEligibility(ctx, fp, p.threshold)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
	}

	return &Preview{
		Fingerprint:    fp,
		Content:        learning.Content,
		SkillName:      learning.SkillName,
		RepoCount:      elig.RepoCount,
		FormattedEntry: formatEntry(learning),
		TargetFile:     p.globalFile,
	}, nil
}

// Promote appends one learning to the global file and marks it promoted.
//
// Eligibility is re-checked at promotion time; an already-promoted
// learning is an explicit ErrNotEligible, never a silent success. With
// dryRun the formatted entry is returned and nothing is mutated.
func (p *Promoter) Promote(ctx context.Context, fp string, dryRun bool) (*Result, error) {
	learning, err := p.ledger.GetLearning(ctx, fp)
	if err != nil {
		return nil, err
	}

	elig, err := p.ledger.CheckPromotionEligibility(ctx, fp, p.threshold)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
	}

	entry := formatEntry(learning)

	if dryRun {
		return &Result{
			Fingerprint: fp,
			Content:     truncate(learning.Content, 100),
			DryRun:      true,
			WouldAdd:    entry,
			AddedTo:     p.globalFile,
		}, nil
	}

	backupPath, err := p.backupFile()
	if err != nil {
		return nil, fmt.Errorf("failed to back up global file: %w", err)
	}

	if err := p.appendEntry(entry); err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("Seen in %d repos", elig.RepoCount)
	if err := p.ledger.MarkPromoted(ctx, fp, reason); err != nil {
		return nil, fmt.Errorf("appended entry but failed to mark promoted: %w", err)
	}

	p.logger.Info(ctx, "learning promoted to global file",
		zap.String("fingerprint", fp),
		zap.Int("repo_count", elig.RepoCount),
		zap.String("backup", backupPath))

	return &Result{
		Fingerprint: fp,
		Content:     truncate(learning.Content, 100),
		AddedTo:     p.globalFile,
		BackupPath:  backupPath,
	}, nil
}

// PromoteAll promotes every endorsed candidate, collecting per-item
// outcomes instead of aborting on the first failure.
func (p *Promoter) PromoteAll(ctx context.Context, dryRun bool) (*BatchResult, error) {
	candidates, err := p.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{
		Total:    len(candidates),
		DryRun:   dryRun,
		Promoted: []*BatchItem{},
		Failed:   []*BatchItem{},
	}

	for _, candidate := range candidates {
		item := &BatchItem{
			Fingerprint: candidate.Fingerprint,
			Content:     truncate(candidate.Content, 60),
		}
		if _, err := p.Promote(ctx, candidate.Fingerprint, dryRun); err != nil {
			item.Error = err.Error()
			batch.Failed = append(batch.Failed, item)
			continue
		}
		batch.Promoted = append(batch.Promoted, item)
	}

	return batch, nil
}

// formatEntry renders a learning as a markdown section for the global
// file: a heading naming the source skill, the content verbatim, and a
// provenance comment.
func formatEntry(l *ledger.Learning) string {
	fpPrefix := l.Fingerprint
	if len(fpPrefix) > 8 {
		fpPrefix = fpPrefix[:8]
	}
	return fmt.Sprintf("\n## From %s (promoted)\n\n%s\n\n<!-- Promoted: %s | Seen in %d repos | Fingerprint: %s -->\n",
		l.SkillName,
		l.Content,
		time.Now().UTC().Format(time.RFC3339),
		l.RepoCount(),
		fpPrefix)
}

// backupFile copies the current global file into the backup directory
// with a timestamped name. A missing global file is not an error; there
// is simply nothing to back up.
func (p *Promoter) backupFile() (string, error) {
	src, err := os.Open(p.globalFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(p.backupDir, 0o700); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(p.globalFile), time.Now().Format("20060102_150405"))
	backupPath := filepath.Join(p.backupDir, name)

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return backupPath, nil
}

// appendEntry appends to the global file, creating it (and its parent
// directory) on first promotion.
func (p *Promoter) appendEntry(entry string) error {
	if err := os.MkdirAll(filepath.Dir(p.globalFile), 0o700); err != nil {
		return fmt.Errorf("failed to create global file directory: %w", err)
	}

	f, err := os.OpenFile(p.globalFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open global file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append to global file: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
