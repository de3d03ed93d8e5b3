package identity

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/domain"
)

// Thresholds holds the per-method confidence values and the fuzzy
// cutoffs. The defaults come from the tuned production values; nothing
// here assumes they are optimal, which is why they are overridable.
type Thresholds struct {
	Phone      float64
	PlatformID float64
	Parent     float64
	Email      float64
	NamePhone  float64

	// FuzzyNameCutoff is the minimum name similarity for a fuzzy match.
	FuzzyNameCutoff float64
	// FuzzyBonus is added to the similarity to form the confidence.
	FuzzyBonus float64
	// FuzzyCap bounds fuzzy confidence below the deterministic methods.
	FuzzyCap float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Phone:           1.0,
		PlatformID:      1.0,
		Parent:          0.9,
		Email:           0.8,
		NamePhone:       0.7,
		FuzzyNameCutoff: 0.6,
		FuzzyBonus:      0.2,
		FuzzyCap:        0.8,
	}
}

// Matcher runs the ordered duplicate-detection strategies against the
// account repository.
type Matcher struct {
	repo       AccountRepository
	phones     PhoneNormalizer
	clk        clock.Clock
	logger     *slog.Logger
	thresholds Thresholds
}

func NewMatcher(repo AccountRepository, phones PhoneNormalizer, clk clock.Clock, logger *slog.Logger) *Matcher {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		repo:       repo,
		phones:     phones,
		clk:        clk,
		logger:     logger,
		thresholds: DefaultThresholds(),
	}
}

// UseThresholds overrides the default confidence table.
func (m *Matcher) UseThresholds(t Thresholds) *Matcher {
	m.thresholds = t
	return m
}

type strategy struct {
	method MatchMethod
	run    func(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error)
}

func (m *Matcher) strategies() []strategy {
	return []strategy{
		{MatchPhoneNumber, m.matchPhone},
		{MatchPlatformUserID, m.matchPlatformUserID},
		{MatchParentID, m.matchParentCode},
		{MatchEmail, m.matchEmail},
		{MatchNameAndPhone, m.matchNameAndPhone},
		{MatchFuzzy, m.matchFuzzy},
	}
}

// CheckForDuplicates evaluates every strategy whose trigger input is
// present, in fixed order, and returns only the positive matches. A
// strategy that fails internally is logged and skipped (fail-open per
// strategy); the returned flag reports whether that happened.
func (m *Matcher) CheckForDuplicates(ctx context.Context, req CreationRequest) ([]DuplicateCheckResult, bool) {
	var (
		matches  []DuplicateCheckResult
		degraded bool
	)
	for _, s := range m.strategies() {
		res, err := s.run(ctx, req)
		if err != nil {
			degraded = true
			m.logger.Warn("duplicate strategy failed, skipping",
				"method", string(s.method),
				"error", err,
			)
			continue
		}
		if res == nil || !res.IsDuplicate {
			continue
		}
		res.Method = s.method
		res.CheckedAt = m.clk.Now()
		matches = append(matches, *res)
	}
	return matches, degraded
}

// PreventDuplicateCreation gates account creation. It returns the
// highest-confidence match, ties broken by strategy order. The check is
// optimistic: on internal failure it answers CanCreate=true, because
// availability of creation outranks strict dedup here and the cleanup
// job restores uniqueness afterwards.
func (m *Matcher) PreventDuplicateCreation(ctx context.Context, req CreationRequest) Decision {
	matches, degraded := m.CheckForDuplicates(ctx, req)
	if len(matches) == 0 {
		return Decision{CanCreate: true, Degraded: degraded}
	}

	best := matches[0]
	for _, candidate := range matches[1:] {
		// Strictly greater keeps evaluation order as the tie-break.
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}

	m.logger.Info("duplicate account detected",
		"method", string(best.Method),
		"confidence", best.Confidence,
		"existing_account_id", best.ExistingAccountID.String(),
	)
	return Decision{
		CanCreate:         false,
		ExistingAccountID: best.ExistingAccountID,
		Match:             &best,
		Degraded:          degraded,
	}
}

// LinkPlatformToExistingAccount attaches a new platform identity to an
// existing account instead of creating a duplicate. The returned
// MergeResult carries the union of platform links now on the account.
func (m *Matcher) LinkPlatformToExistingAccount(ctx context.Context, platform domain.Platform, platformUserID string, accountID uuid.UUID) MergeResult {
	if !platform.Valid() {
		return MergeResult{PrimaryAccountID: accountID, Err: domain.ErrUnknownPlatform}
	}
	account, err := m.repo.GetByID(ctx, accountID)
	if err != nil {
		return MergeResult{PrimaryAccountID: accountID, Err: err}
	}

	if err := m.repo.UpdatePlatformLinks(ctx, accountID, map[domain.Platform]string{platform: platformUserID}); err != nil {
		return MergeResult{PrimaryAccountID: accountID, Err: err}
	}

	links := make(map[domain.Platform]string, len(account.PlatformLinks)+1)
	for p, id := range account.PlatformLinks {
		if id != "" {
			links[p] = id
		}
	}
	links[platform] = platformUserID

	m.logger.Info("platform linked to existing account",
		"account_id", accountID.String(),
		"platform", string(platform),
	)
	return MergeResult{
		Success:             true,
		PrimaryAccountID:    accountID,
		MergedPlatformLinks: links,
	}
}

func (m *Matcher) matchPhone(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	if req.PhoneNumber == "" {
		return nil, nil
	}
	normalized, err := m.phones.Normalize(req.PhoneNumber)
	if err != nil {
		// Unparseable phone is a missing signal, not a failure.
		if errors.Is(err, domain.ErrInvalidPhone) {
			return nil, nil
		}
		return nil, err
	}
	account, err := m.repo.FindByPhone(ctx, normalized)
	if err != nil {
		return notFoundAsMiss(err)
	}
	return m.match(account, m.thresholds.Phone, nil), nil
}

func (m *Matcher) matchPlatformUserID(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	if req.Platform == "" || req.PlatformUserID == "" {
		return nil, nil
	}
	if !req.Platform.Valid() {
		return nil, nil
	}
	account, err := m.repo.FindByPlatformLink(ctx, req.Platform, req.PlatformUserID)
	if err != nil {
		return notFoundAsMiss(err)
	}
	return m.match(account, m.thresholds.PlatformID, nil), nil
}

func (m *Matcher) matchParentCode(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	if req.ParentCode == "" {
		return nil, nil
	}
	account, err := m.repo.FindByParentCode(ctx, req.ParentCode)
	if err != nil {
		return notFoundAsMiss(err)
	}
	return m.match(account, m.thresholds.Parent, nil), nil
}

func (m *Matcher) matchEmail(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, nil
	}
	account, err := m.repo.FindByEmail(ctx, email)
	if err != nil {
		return notFoundAsMiss(err)
	}
	return m.match(account, m.thresholds.Email, nil), nil
}

func (m *Matcher) matchNameAndPhone(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	if req.FirstName == "" || req.LastName == "" {
		return nil, nil
	}
	accounts, err := m.repo.FindByName(ctx, req.FirstName, req.LastName)
	if err != nil {
		return notFoundAsMiss(err)
	}
	for _, account := range accounts {
		if phonesSimilar(req.PhoneNumber, account.PhoneNumber) {
			return m.match(account, m.thresholds.NamePhone, nil), nil
		}
	}
	return nil, nil
}

func (m *Matcher) matchFuzzy(ctx context.Context, req CreationRequest) (*DuplicateCheckResult, error) {
	digits := digitsOnly(req.PhoneNumber)
	if len(digits) < phoneSuffixLen {
		return nil, nil
	}
	if req.FirstName == "" && req.LastName == "" {
		return nil, nil
	}

	candidates, err := m.repo.FindByPhoneSuffix(ctx, lastDigits(req.PhoneNumber, phoneSuffixLen))
	if err != nil {
		return notFoundAsMiss(err)
	}

	var (
		best    *domain.Account
		bestSim float64
	)
	for _, account := range candidates {
		sim := nameSimilarity(req.FirstName, req.LastName, account.FirstName, account.LastName)
		if sim > m.thresholds.FuzzyNameCutoff && sim > bestSim {
			best = account
			bestSim = sim
		}
	}
	if best == nil {
		return nil, nil
	}

	confidence := math.Min(m.thresholds.FuzzyCap, bestSim+m.thresholds.FuzzyBonus)
	res := m.match(best, confidence, map[string]any{"name_similarity": bestSim})
	return res, nil
}

// match builds the positive result for an account at the given
// confidence. Returns nil for a nil account so callers can pass lookup
// results straight through.
func (m *Matcher) match(account *domain.Account, confidence float64, metadata map[string]any) *DuplicateCheckResult {
	if account == nil {
		return nil
	}
	links := make([]string, 0, len(account.PlatformLinks))
	for _, p := range domain.KnownPlatforms {
		if _, ok := account.Link(p); ok {
			links = append(links, string(p))
		}
	}
	return &DuplicateCheckResult{
		IsDuplicate:       true,
		ExistingAccountID: account.ID,
		Confidence:        confidence,
		PlatformLinks:     links,
		Metadata:          metadata,
	}
}

func notFoundAsMiss(err error) (*DuplicateCheckResult, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}
