package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	AccountID   uuid.UUID  `gorm:"column:account_id;type:uuid;default:gen_random_uuid();primaryKey"`
	PhoneNumber string     `gorm:"column:phone_number"`
	Email       string     `gorm:"column:email"`
	FirstName   string     `gorm:"column:first_name"`
	LastName    string     `gorm:"column:last_name"`
	ParentCode  string     `gorm:"column:parent_code"`
	TelegramID  *string    `gorm:"column:telegram_id"`
	WhatsAppID  *string    `gorm:"column:whatsapp_id"`
	DiscordID   *string    `gorm:"column:discord_id"`
	Status      string     `gorm:"column:status"`
	MergedInto  *uuid.UUID `gorm:"column:merged_into"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	MergedAt    *time.Time `gorm:"column:merged_at"`
}

func (accountModel) TableName() string { return "accounts" }

type sessionModel struct {
	SessionID  uuid.UUID `gorm:"column:session_id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID  uuid.UUID `gorm:"column:account_id"`
	Platform   string    `gorm:"column:platform"`
	StartedAt  time.Time `gorm:"column:started_at"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
}

func (sessionModel) TableName() string { return "sessions" }

// duplicatePairRow is one row of the cleanup self-join.
type duplicatePairRow struct {
	AccountID      uuid.UUID `gorm:"column:account_id"`
	OtherID        uuid.UUID `gorm:"column:other_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	OtherCreatedAt time.Time `gorm:"column:other_created_at"`
	PhoneNumber    string    `gorm:"column:phone_number"`
}
