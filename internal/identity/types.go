// Package identity decides whether a creation request already has an
// account (entity resolution over partial signals) and consolidates
// accounts when duplicates slip through. The real-time check is
// advisory and fail-open; the cleanup job restores the uniqueness
// invariant afterwards.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/domain"
)

// MatchMethod names the strategy that produced a duplicate match.
type MatchMethod string

const (
	MatchPhoneNumber    MatchMethod = "PHONE_NUMBER"
	MatchPlatformUserID MatchMethod = "PLATFORM_USER_ID"
	MatchParentID       MatchMethod = "PARENT_ID"
	MatchEmail          MatchMethod = "EMAIL"
	MatchNameAndPhone   MatchMethod = "NAME_AND_PHONE"
	MatchFuzzy          MatchMethod = "FUZZY_MATCHING"
)

// CreationRequest carries the identity signals of one inbound "create an
// account" event. Phone number is the only signal the workflow always
// supplies; everything else is best effort.
type CreationRequest struct {
	PhoneNumber    string          `json:"phone_number"`
	Platform       domain.Platform `json:"platform,omitempty"`
	PlatformUserID string          `json:"platform_user_id,omitempty"`
	Email          string          `json:"email,omitempty"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	ParentCode     string          `json:"parent_code,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// DuplicateCheckResult is one strategy's verdict. Produced fresh per
// check, logged, and discarded, never mutated.
type DuplicateCheckResult struct {
	IsDuplicate       bool           `json:"is_duplicate"`
	ExistingAccountID uuid.UUID      `json:"existing_account_id,omitempty"`
	Method            MatchMethod    `json:"method"`
	Confidence        float64        `json:"confidence"`
	PlatformLinks     []string       `json:"platform_links,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CheckedAt         time.Time      `json:"checked_at"`
}

// Decision is the outcome of preventDuplicateCreation. Degraded flags
// that at least one strategy failed internally and was skipped, so a
// CanCreate=true verdict may be optimistic.
type Decision struct {
	CanCreate         bool                  `json:"can_create"`
	ExistingAccountID uuid.UUID             `json:"existing_account_id,omitempty"`
	Match             *DuplicateCheckResult `json:"match,omitempty"`
	Degraded          bool                  `json:"degraded,omitempty"`
}

// MergeResult reports the outcome of a merge or link operation. It
// represents what happened, not persisted state; partial completion is
// reported through Err with Success=false while MergedAccountIDs keeps
// the ids that did complete.
type MergeResult struct {
	Success             bool                       `json:"success"`
	PrimaryAccountID    uuid.UUID                  `json:"primary_account_id"`
	MergedAccountIDs    []uuid.UUID                `json:"merged_account_ids,omitempty"`
	MergedPlatformLinks map[domain.Platform]string `json:"merged_platform_links,omitempty"`
	Err                 error                      `json:"-"`
}

// CleanupSummary counts one cleanup run. Merged counts pairs whose
// merge completed; pairs that errored stay in Found only.
type CleanupSummary struct {
	Found  int `json:"found"`
	Merged int `json:"merged"`
}
