package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/provisia/warden/internal/domain"
	"github.com/provisia/warden/internal/identity"
)

// AccountRepository implements identity.AccountRepository on GORM.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", id).Take(&rec).Error; err != nil {
		return nil, mapError(err)
	}
	return toDomainAccount(rec), nil
}

func (r *AccountRepository) FindByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.findActive(ctx, "phone_number = ?", phone)
}

func (r *AccountRepository) FindByPlatformLink(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.Account, error) {
	column, ok := platformColumns[platform]
	if !ok {
		return nil, domain.ErrUnknownPlatform
	}
	return r.findActive(ctx, fmt.Sprintf("%s = ?", column), platformUserID)
}

func (r *AccountRepository) FindByParentCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.findActive(ctx, "parent_code = ?", code)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return r.findActive(ctx, "LOWER(TRIM(email)) = ?", normalized)
}

func (r *AccountRepository) FindByName(ctx context.Context, firstName, lastName string) ([]*domain.Account, error) {
	var recs []accountModel
	err := r.db.WithContext(ctx).
		Where("LOWER(first_name) = ? AND LOWER(last_name) = ? AND status = ?",
			strings.ToLower(strings.TrimSpace(firstName)),
			strings.ToLower(strings.TrimSpace(lastName)),
			string(domain.AccountActive)).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainAccounts(recs), nil
}

func (r *AccountRepository) FindByPhoneSuffix(ctx context.Context, suffix string) ([]*domain.Account, error) {
	if suffix == "" {
		return nil, nil
	}
	var recs []accountModel
	err := r.db.WithContext(ctx).
		Where("phone_number LIKE ? AND status = ?", "%"+suffix+"%", string(domain.AccountActive)).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainAccounts(recs), nil
}

func (r *AccountRepository) UpdatePlatformLinks(ctx context.Context, id uuid.UUID, links map[domain.Platform]string) error {
	updates := make(map[string]any, len(links))
	for platform, platformUserID := range links {
		column, ok := platformColumns[platform]
		if !ok {
			return domain.ErrUnknownPlatform
		}
		updates[column] = platformUserID
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) MarkMerged(ctx context.Context, id, into uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", id).
		Updates(map[string]any{
			"status":      string(domain.AccountMerged),
			"merged_into": into,
			"merged_at":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ReassignSessions(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("account_id = ?", from).
		Update("account_id", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *AccountRepository) FindPhoneDuplicatePairs(ctx context.Context, since time.Time) ([]identity.DuplicatePair, error) {
	var rows []duplicatePairRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT a.account_id,
		       b.account_id AS other_id,
		       a.created_at,
		       b.created_at AS other_created_at,
		       a.phone_number
		FROM accounts a
		JOIN accounts b
		  ON a.phone_number = b.phone_number
		 AND a.account_id <> b.account_id
		WHERE a.status = ? AND b.status = ?
		  AND a.phone_number <> ''
		  AND a.created_at >= ? AND b.created_at >= ?`,
		string(domain.AccountActive), string(domain.AccountActive), since, since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	pairs := make([]identity.DuplicatePair, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, identity.DuplicatePair{
			AccountID:      row.AccountID,
			OtherID:        row.OtherID,
			CreatedAt:      row.CreatedAt,
			OtherCreatedAt: row.OtherCreatedAt,
			PhoneNumber:    row.PhoneNumber,
		})
	}
	return pairs, nil
}

func (r *AccountRepository) findActive(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var rec accountModel
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Where("status = ?", string(domain.AccountActive)).
		Take(&rec).Error
	if err != nil {
		return nil, mapError(err)
	}
	return toDomainAccount(rec), nil
}

func toDomainAccounts(recs []accountModel) []*domain.Account {
	accounts := make([]*domain.Account, 0, len(recs))
	for _, rec := range recs {
		accounts = append(accounts, toDomainAccount(rec))
	}
	return accounts
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
