// Package logging provides structured logging for reflectd built on Zap.
//
// The Logger wraps zap with context-aware methods that attach correlation
// fields (repository identifier, skill name) from the context to every
// entry. Logs go to stderr so command output on stdout stays parseable.
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRepoID(ctx, repoID)
//	logger.Info(ctx, "learning recorded", zap.String("fingerprint", fp))
//
// Tests use NewTestLogger, which observes all entries and provides
// AssertLogged / AssertNotLogged helpers.
package logging
