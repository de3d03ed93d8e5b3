package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/domain"
)

// fakeRepo is an in-memory AccountRepository with the same lookup
// semantics as the SQL implementation: ACTIVE-only matches and
// domain.ErrNotFound on a miss.
type fakeRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	sessions []*domain.Session

	findEmailErr   error
	findPairsErr   error
	markMergedErr  map[uuid.UUID]error
	reassignErr    map[uuid.UUID]error
	getByIDErr     map[uuid.UUID]error
	updateLinksErr map[uuid.UUID]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:       make(map[uuid.UUID]*domain.Account),
		markMergedErr:  make(map[uuid.UUID]error),
		reassignErr:    make(map[uuid.UUID]error),
		getByIDErr:     make(map[uuid.UUID]error),
		updateLinksErr: make(map[uuid.UUID]error),
	}
}

func (r *fakeRepo) add(a *domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.AccountActive
	}
	if a.PlatformLinks == nil {
		a.PlatformLinks = make(map[domain.Platform]string)
	}
	r.accounts[a.ID] = a
	return a
}

func (r *fakeRepo) addSession(accountID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, &domain.Session{ID: uuid.New(), AccountID: accountID})
}

func (r *fakeRepo) sessionCount(accountID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			n++
		}
	}
	return n
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.getByIDErr[id]; err != nil {
		return nil, err
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) findActive(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Status == domain.AccountActive && match(a) {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) FindByPhone(_ context.Context, phone string) (*domain.Account, error) {
	return r.findActive(func(a *domain.Account) bool { return a.PhoneNumber == phone })
}

func (r *fakeRepo) FindByPlatformLink(_ context.Context, platform domain.Platform, platformUserID string) (*domain.Account, error) {
	return r.findActive(func(a *domain.Account) bool {
		id, ok := a.Link(platform)
		return ok && id == platformUserID
	})
}

func (r *fakeRepo) FindByParentCode(_ context.Context, code string) (*domain.Account, error) {
	return r.findActive(func(a *domain.Account) bool { return a.ParentCode == code })
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if r.findEmailErr != nil {
		return nil, r.findEmailErr
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	return r.findActive(func(a *domain.Account) bool {
		return strings.ToLower(strings.TrimSpace(a.Email)) == normalized
	})
}

func (r *fakeRepo) FindByName(_ context.Context, firstName, lastName string) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.accounts {
		if a.Status != domain.AccountActive {
			continue
		}
		if strings.EqualFold(a.FirstName, firstName) && strings.EqualFold(a.LastName, lastName) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByPhoneSuffix(_ context.Context, suffix string) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.accounts {
		if a.Status == domain.AccountActive && suffix != "" && strings.Contains(a.PhoneNumber, suffix) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdatePlatformLinks(_ context.Context, id uuid.UUID, links map[domain.Platform]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateLinksErr[id]; err != nil {
		return err
	}
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	for platform, platformUserID := range links {
		if !platform.Valid() {
			return domain.ErrUnknownPlatform
		}
		a.PlatformLinks[platform] = platformUserID
	}
	return nil
}

func (r *fakeRepo) MarkMerged(_ context.Context, id, into uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.markMergedErr[id]; err != nil {
		return err
	}
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	target := into
	when := at
	a.Status = domain.AccountMerged
	a.MergedInto = &target
	a.MergedAt = &when
	return nil
}

func (r *fakeRepo) ReassignSessions(_ context.Context, from, to uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reassignErr[from]; err != nil {
		return 0, err
	}
	var moved int64
	for _, s := range r.sessions {
		if s.AccountID == from {
			s.AccountID = to
			moved++
		}
	}
	return moved, nil
}

func (r *fakeRepo) FindPhoneDuplicatePairs(_ context.Context, since time.Time) ([]DuplicatePair, error) {
	if r.findPairsErr != nil {
		return nil, r.findPairsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var pairs []DuplicatePair
	for _, a := range r.accounts {
		for _, b := range r.accounts {
			if a.ID == b.ID {
				continue
			}
			if a.Status != domain.AccountActive || b.Status != domain.AccountActive {
				continue
			}
			if a.PhoneNumber == "" || a.PhoneNumber != b.PhoneNumber {
				continue
			}
			if a.CreatedAt.Before(since) || b.CreatedAt.Before(since) {
				continue
			}
			pairs = append(pairs, DuplicatePair{
				AccountID:      a.ID,
				OtherID:        b.ID,
				CreatedAt:      a.CreatedAt,
				OtherCreatedAt: b.CreatedAt,
				PhoneNumber:    a.PhoneNumber,
			})
		}
	}
	return pairs, nil
}

func mustUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// stubNormalizer echoes input back as already canonical. Inputs
// prefixed with "!" are reported invalid.
type stubNormalizer struct{}

func (stubNormalizer) Normalize(raw string) (string, error) {
	if raw == "" || strings.HasPrefix(raw, "!") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPhone, raw)
	}
	return raw, nil
}
