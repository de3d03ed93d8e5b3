package postgres

import (
	"github.com/provisia/warden/internal/domain"
)

// platformColumns maps each known platform to its link column. Lookups
// and updates go through this table so column names never come from
// request input.
var platformColumns = map[domain.Platform]string{
	domain.PlatformTelegram: "telegram_id",
	domain.PlatformWhatsApp: "whatsapp_id",
	domain.PlatformDiscord:  "discord_id",
}

func toDomainAccount(rec accountModel) *domain.Account {
	links := make(map[domain.Platform]string)
	if rec.TelegramID != nil && *rec.TelegramID != "" {
		links[domain.PlatformTelegram] = *rec.TelegramID
	}
	if rec.WhatsAppID != nil && *rec.WhatsAppID != "" {
		links[domain.PlatformWhatsApp] = *rec.WhatsAppID
	}
	if rec.DiscordID != nil && *rec.DiscordID != "" {
		links[domain.PlatformDiscord] = *rec.DiscordID
	}
	return &domain.Account{
		ID:            rec.AccountID,
		PhoneNumber:   rec.PhoneNumber,
		Email:         rec.Email,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		ParentCode:    rec.ParentCode,
		PlatformLinks: links,
		Status:        domain.AccountStatus(rec.Status),
		MergedInto:    rec.MergedInto,
		CreatedAt:     rec.CreatedAt,
		MergedAt:      rec.MergedAt,
	}
}
