// Package fingerprint provides content addressing for learnings and
// repository identity.
//
// Learnings are deduplicated by a short stable hash of their normalized
// text. Repositories are identified by a hash of their origin remote URL,
// so the same learning surfaced from clones of the same repository counts
// once, while distinct repositories count separately.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
)

const (
	// FingerprintLength is the hex length of a learning fingerprint.
	// Short enough for human display, long enough that accidental
	// collision across thousands of learnings is negligible.
	FingerprintLength = 16

	// RepoIDLength is the hex length of a repository identifier.
	RepoIDLength = 12
)

// Normalize lowercases content and collapses all whitespace runs to
// single spaces. Equal normalized content always yields equal
// fingerprints; this is the deduplication key for the whole system.
func Normalize(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// Fingerprint returns the stable content hash for a learning.
//
// The hash is SHA-256 of the normalized text, truncated to
// FingerprintLength hex characters. It is a pure function of the
// normalized text and stable across process runs and platforms.
func Fingerprint(content string) string {
	return hash(Normalize(content), FingerprintLength)
}

// RepoID returns a stable identifier for the repository containing path.
//
// It prefers the origin remote URL (stable across clones and working
// directories of the same repository) and falls back to a hash of the
// directory path when no remote is configured or path is not inside a
// Git repository. The identifier is a coarse deduplication key, not a
// security credential.
func RepoID(path string) string {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return hash("unknown", RepoIDLength)
		}
		path = wd
	}

	if url := originURL(path); url != "" {
		return hash(url, RepoIDLength)
	}
	return hash(path, RepoIDLength)
}

// originURL reads the origin remote URL from the repository containing
// path, searching parent directories for the .git directory.
func originURL(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return strings.TrimSpace(urls[0])
}

func hash(s string, length int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:length]
}
