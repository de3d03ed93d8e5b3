package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/domain"
)

// AccountRepository is the minimal account access the admission core
// needs. Lookup methods consider ACTIVE accounts only and return
// domain.ErrNotFound when nothing matches; the schema itself belongs to
// the provisioning workflow.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	FindByPhone(ctx context.Context, phone string) (*domain.Account, error)
	FindByPlatformLink(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.Account, error)
	FindByParentCode(ctx context.Context, code string) (*domain.Account, error)
	// FindByEmail matches case-insensitively on the trimmed address.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByName matches first and last name case-insensitively.
	FindByName(ctx context.Context, firstName, lastName string) ([]*domain.Account, error)
	// FindByPhoneSuffix returns accounts whose phone number contains the
	// given digit suffix.
	FindByPhoneSuffix(ctx context.Context, suffix string) ([]*domain.Account, error)

	// UpdatePlatformLinks writes the given link fields onto the account,
	// leaving platforms absent from the map untouched.
	UpdatePlatformLinks(ctx context.Context, id uuid.UUID, links map[domain.Platform]string) error
	// MarkMerged transitions the account to MERGED pointing at into.
	// MERGED is terminal.
	MarkMerged(ctx context.Context, id, into uuid.UUID, at time.Time) error
	// ReassignSessions transfers every session owned by from to to and
	// reports how many moved.
	ReassignSessions(ctx context.Context, from, to uuid.UUID) (int64, error)

	// FindPhoneDuplicatePairs self-joins ACTIVE accounts created after
	// since on identical normalized phone numbers. The join yields both
	// (A,B) and (B,A); the cleanup job canonicalizes.
	FindPhoneDuplicatePairs(ctx context.Context, since time.Time) ([]DuplicatePair, error)
}

// DuplicatePair is one row of the phone self-join.
type DuplicatePair struct {
	AccountID      uuid.UUID
	OtherID        uuid.UUID
	CreatedAt      time.Time
	OtherCreatedAt time.Time
	PhoneNumber    string
}

// PhoneNormalizer canonicalizes raw phone input. A validation error
// means "skip this signal", never a fatal matcher error.
type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}
