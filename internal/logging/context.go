// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type repoCtxKey struct{}
type skillCtxKey struct{}

// WithRepoID returns a context carrying the current repository identifier.
func WithRepoID(ctx context.Context, repoID string) context.Context {
	return context.WithValue(ctx, repoCtxKey{}, repoID)
}

// RepoIDFromContext returns the repository identifier, or "" if unset.
func RepoIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(repoCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSkill returns a context carrying the skill being processed.
func WithSkill(ctx context.Context, skill string) context.Context {
	return context.WithValue(ctx, skillCtxKey{}, skill)
}

// SkillFromContext returns the skill name, or "" if unset.
func SkillFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(skillCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if repoID := RepoIDFromContext(ctx); repoID != "" {
		fields = append(fields, zap.String("repo.id", repoID))
	}
	if skill := SkillFromContext(ctx); skill != "" {
		fields = append(fields, zap.String("skill.name", skill))
	}

	return fields
}
