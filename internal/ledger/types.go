package ledger

import (
	"errors"
	"time"
)

// Common errors for ledger operations.
var (
	ErrLearningNotFound  = errors.New("learning not found")
	ErrEmptyContent      = errors.New("learning content cannot be empty")
	ErrEmptyFingerprint  = errors.New("fingerprint cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
)

// Status represents the promotion lifecycle state of a learning.
//
// The transition is monotonic: pending -> promoted, exactly once,
// never reversed.
type Status string

const (
	// StatusPending indicates the learning lives at skill scope.
	StatusPending Status = "pending"

	// StatusPromoted indicates the learning has been copied to the
	// global knowledge file.
	StatusPromoted Status = "promoted"
)

// LearningType tags how a learning was detected. The set is open-ended;
// these are the values the signal extractors emit today.
type LearningType string

const (
	TypeCorrection LearningType = "correction"
	TypeApproval   LearningType = "approval"
	TypeQuestion   LearningType = "question"
	TypeExplicit   LearningType = "explicit"
)

// Learning is a deduplicated unit of knowledge extracted from
// conversation transcripts.
//
// Exactly one Learning exists per fingerprint. Content is immutable
// after creation; recording the same fingerprint again only grows the
// counters, the repository set, and the confidence high-water mark.
type Learning struct {
	// ID is an opaque identifier assigned at creation, never reused.
	ID string `json:"id"`

	// Fingerprint is the stable content hash and unique key.
	Fingerprint string `json:"fingerprint"`

	// Content is the original learning text, immutable after creation.
	Content string `json:"content"`

	// LearningType tags the detection class (correction, approval, ...).
	LearningType LearningType `json:"learning_type"`

	// SkillName is the functional area the learning is attached to.
	SkillName string `json:"skill_name"`

	// RepoIDs is the set of repository identifiers that have
	// independently surfaced this fingerprint. Membership is unique;
	// order carries no meaning.
	RepoIDs []string `json:"repo_ids"`

	// Count is the number of times this fingerprint was recorded.
	// Always >= len(RepoIDs).
	Count int `json:"count"`

	// Confidence is the running maximum confidence observed, in [0,1].
	Confidence float64 `json:"confidence"`

	// Status is the promotion lifecycle state.
	Status Status `json:"status"`

	// FirstSeen is set at creation and never changes.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen advances on every record.
	LastSeen time.Time `json:"last_seen"`

	// PromotedAt is set exactly once, when Status becomes promoted.
	PromotedAt *time.Time `json:"promoted_at,omitempty"`
}

// RepoCount returns the number of distinct repositories that have seen
// this learning.
func (l *Learning) RepoCount() int {
	return len(l.RepoIDs)
}

// HasRepo reports whether the repository identifier is already in the set.
func (l *Learning) HasRepo(repoID string) bool {
	for _, id := range l.RepoIDs {
		if id == repoID {
			return true
		}
	}
	return false
}

// Promotion is an immutable audit record of a promotion event.
// One row is appended per MarkPromoted call, including repeated calls
// on the same fingerprint, preserving a full audit trail.
type Promotion struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	FromScope   string    `json:"from_scope"`
	ToScope     string    `json:"to_scope"`
	Reason      string    `json:"reason"`
	PromotedAt  time.Time `json:"promoted_at"`
}

// RecordAction distinguishes a first recording from a repeat.
type RecordAction string

const (
	ActionCreated RecordAction = "created"
	ActionUpdated RecordAction = "updated"
)

// RecordResult summarizes one RecordLearning call.
type RecordResult struct {
	Action      RecordAction `json:"action"`
	Fingerprint string       `json:"fingerprint"`
	RepoCount   int          `json:"repo_count"`
	TotalCount  int          `json:"total_count"`
}

// Eligibility is the result of a promotion eligibility check.
//
// Not-found and already-promoted are both ineligible but carry distinct
// reasons so callers can tell "never seen" apart from "done already".
type Eligibility struct {
	Eligible    bool   `json:"eligible"`
	Fingerprint string `json:"fingerprint"`
	Content     string `json:"content,omitempty"`
	SkillName   string `json:"skill_name,omitempty"`
	RepoCount   int    `json:"repo_count"`
	Threshold   int    `json:"threshold"`
	Reason      string `json:"reason"`
}

// Stats summarizes the ledger contents.
type Stats struct {
	TotalLearnings    int            `json:"total_learnings"`
	ByStatus          map[string]int `json:"by_status"`
	BySkill           map[string]int `json:"by_skill"`
	MultiRepo         int            `json:"multi_repo"`
	PromotionEligible int            `json:"promotion_eligible"`
	TotalPromotions   int            `json:"total_promotions"`
}
