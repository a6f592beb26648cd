package promotion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/ledger"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/scope"
)

// testEnv wires a real ledger, analyzer, and promoter against a temp
// directory, with two stores posing as distinct repositories.
type testEnv struct {
	storeA     *ledger.Store
	storeB     *ledger.Store
	promoter   *Promoter
	globalFile string
	backupDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "learnings.db")
	logger := logging.NewTestLogger().Logger

	storeA, err := ledger.NewStore(dbPath, "repo-a", logger)
	require.NoError(t, err)
	t.Cleanup(func() { storeA.Close() })

	storeB, err := ledger.NewStore(dbPath, "repo-b", logger)
	require.NoError(t, err)
	t.Cleanup(func() { storeB.Close() })

	env := &testEnv{
		storeA:     storeA,
		storeB:     storeB,
		globalFile: filepath.Join(dir, "global.md"),
		backupDir:  filepath.Join(dir, "backups"),
	}
	analyzer := scope.NewAnalyzer(storeA, 2, logger)
	env.promoter = NewPromoter(storeA, analyzer, env.globalFile, env.backupDir, 2, logger)
	return env
}

// recordInBoth records the same content from both repositories and
// returns its fingerprint.
func (e *testEnv) recordInBoth(t *testing.T, content string) string {
	t.Helper()
	ctx := context.Background()
	res, err := e.storeA.RecordLearning(ctx, content, ledger.TypeCorrection, "general", 0.8)
	require.NoError(t, err)
	_, err = e.storeB.RecordLearning(ctx, content, ledger.TypeCorrection, "general", 0.8)
	require.NoError(t, err)
	return res.Fingerprint
}

func TestPromoteNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.promoter.Promote(context.Background(), "ffffffffffffffff", false)
	assert.ErrorIs(t, err, ledger.ErrLearningNotFound)
}

func TestPromoteNotEligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Only one repository has seen it.
	res, err := env.storeA.RecordLearning(ctx, "single repo learning", ledger.TypeCorrection, "general", 0.5)
	require.NoError(t, err)

	_, err = env.promoter.Promote(ctx, res.Fingerprint, false)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Contains(t, err.Error(), "Seen in 1/2 repos")
}

func TestPromoteDryRunThenReal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fp := env.recordInBoth(t, "run tests before every commit")

	// Dry run: entry is rendered but nothing changes.
	result, err := env.promoter.Promote(ctx, fp, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Contains(t, result.WouldAdd, "## From general (promoted)")
	assert.Contains(t, result.WouldAdd, "run tests before every commit")
	assert.Contains(t, result.WouldAdd, "Seen in 2 repos")
	assert.NoFileExists(t, env.globalFile)

	learning, err := env.storeA.GetLearning(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, learning.Status)

	// Real promotion appends the entry and flips the status.
	result, err = env.promoter.Promote(ctx, fp, false)
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	assert.Equal(t, env.globalFile, result.AddedTo)
	assert.Empty(t, result.BackupPath) // no pre-existing file to back up

	data, err := os.ReadFile(env.globalFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## From general (promoted)")
	assert.Contains(t, string(data), "Fingerprint: "+fp[:8])

	learning, err = env.storeA.GetLearning(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPromoted, learning.Status)
}

func TestPromoteAlreadyPromoted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fp := env.recordInBoth(t, "never commit secrets to git")

	_, err := env.promoter.Promote(ctx, fp, false)
	require.NoError(t, err)

	// A second promotion is an explicit rejection, not a silent success.
	_, err = env.promoter.Promote(ctx, fp, false)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Contains(t, err.Error(), "Already promoted")
}

func TestPromoteBacksUpExistingFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(env.globalFile, []byte("# Global knowledge\n"), 0o600))

	fp := env.recordInBoth(t, "always check error returns")
	result, err := env.promoter.Promote(ctx, fp, false)
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupPath)

	// The backup holds the pre-promotion content.
	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "# Global knowledge\n", string(backup))

	// The global file keeps its original content plus the new entry.
	data, err := os.ReadFile(env.globalFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Global knowledge")
	assert.Contains(t, string(data), "always check error returns")
}

func TestPreviewPromotion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fp := env.recordInBoth(t, "use docker for local services")

	preview, err := env.promoter.PreviewPromotion(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, fp, preview.Fingerprint)
	assert.Equal(t, 2, preview.RepoCount)
	assert.Equal(t, env.globalFile, preview.TargetFile)
	assert.Contains(t, preview.FormattedEntry, "use docker for local services")

	// Preview never touches the filesystem.
	assert.NoFileExists(t, env.globalFile)
}

func TestPreviewPromotionNotEligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.storeA.RecordLearning(ctx, "single repo learning", ledger.TypeCorrection, "general", 0.5)
	require.NoError(t, err)

	_, err = env.promoter.PreviewPromotion(ctx, res.Fingerprint)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestPromoteAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Two candidates with globally-scoped content.
	env.recordInBoth(t, "run tests before every commit, never commit secrets")
	env.recordInBoth(t, "verwende immer uv statt pip")

	batch, err := env.promoter.PromoteAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Total)
	assert.Len(t, batch.Promoted, 2)
	assert.Empty(t, batch.Failed)

	data, err := os.ReadFile(env.globalFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "never commit secrets")
	assert.Contains(t, string(data), "verwende immer uv")

	// Re-running finds nothing left to promote.
	batch, err = env.promoter.PromoteAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Total)
}

func TestPromoteAllDryRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fp := env.recordInBoth(t, "run tests before every commit, never commit secrets")

	batch, err := env.promoter.PromoteAll(ctx, true)
	require.NoError(t, err)
	assert.True(t, batch.DryRun)
	assert.Len(t, batch.Promoted, 1)
	assert.NoFileExists(t, env.globalFile)

	learning, err := env.storeA.GetLearning(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, learning.Status)
}

// brokenSuggester returns a candidate the ledger has never seen, so its
// promotion must fail while the batch continues.
type brokenSuggester struct {
	real Suggester
}

func (b *brokenSuggester) PromotionSuggestions(ctx context.Context) ([]*scope.Suggestion, error) {
	suggestions, err := b.real.PromotionSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	return append(suggestions, &scope.Suggestion{
		Fingerprint: "ffffffffffffffff",
		Content:     "phantom candidate",
	}), nil
}

func TestPromoteAllPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.recordInBoth(t, "run tests before every commit, never commit secrets")

	logger := logging.NewTestLogger().Logger
	analyzer := scope.NewAnalyzer(env.storeA, 2, logger)
	promoter := NewPromoter(env.storeA, &brokenSuggester{real: analyzer},
		env.globalFile, env.backupDir, 2, logger)

	batch, err := promoter.PromoteAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Total)
	assert.Len(t, batch.Promoted, 1)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, "ffffffffffffffff", batch.Failed[0].Fingerprint)
	assert.Contains(t, batch.Failed[0].Error, "not found")
}
