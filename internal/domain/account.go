package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies a messaging platform an account can be reached on.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformDiscord  Platform = "discord"
)

// KnownPlatforms lists every platform the repository stores a link column for.
var KnownPlatforms = []Platform{PlatformTelegram, PlatformWhatsApp, PlatformDiscord}

func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformWhatsApp, PlatformDiscord:
		return true
	}
	return false
}

// AccountStatus is the lifecycle state of an account. MERGED is terminal:
// a merged account is never reactivated.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountMerged AccountStatus = "MERGED"
)

// Account is the provisioning core's view of an account record. The full
// schema is owned by the provisioning workflow; only the fields the
// admission core reads and updates appear here.
type Account struct {
	ID            uuid.UUID
	PhoneNumber   string
	Email         string
	FirstName     string
	LastName      string
	ParentCode    string
	PlatformLinks map[Platform]string
	Status        AccountStatus
	MergedInto    *uuid.UUID
	CreatedAt     time.Time
	MergedAt      *time.Time
}

// Link returns the platform user id linked for the given platform, if any.
func (a *Account) Link(p Platform) (string, bool) {
	id, ok := a.PlatformLinks[p]
	return id, ok && id != ""
}

// Session is a conversational session owned by an account. Merges
// transfer ownership to the surviving account.
type Session struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Platform   Platform
	StartedAt  time.Time
	LastSeenAt time.Time
}
