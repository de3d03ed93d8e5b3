package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/domain"
)

// Merger consolidates duplicate accounts into one survivor. There is no
// all-or-nothing transaction around a merge: each duplicate is
// processed independently, a failed step leaves earlier steps applied,
// and re-invoking the same merge is safe: already-MERGED duplicates
// are no-ops while unprocessed siblings still complete.
type Merger struct {
	repo   AccountRepository
	clk    clock.Clock
	logger *slog.Logger
}

func NewMerger(repo AccountRepository, clk clock.Clock, logger *slog.Logger) *Merger {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{repo: repo, clk: clk, logger: logger}
}

// MergeDuplicateAccounts folds each duplicate into the primary:
// platform links are accumulated (first writer wins per platform),
// sessions are reassigned to the primary, the duplicate is marked
// MERGED, and finally the accumulated links are applied to the primary.
// Per-id failures are isolated, logged, and reported through Err.
func (m *Merger) MergeDuplicateAccounts(ctx context.Context, primaryID uuid.UUID, duplicateIDs []uuid.UUID) MergeResult {
	res := MergeResult{PrimaryAccountID: primaryID}
	accumulated := make(map[domain.Platform]string)
	var errs []error

	for _, dupID := range duplicateIDs {
		if dupID == primaryID {
			continue
		}
		dup, err := m.repo.GetByID(ctx, dupID)
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("merge skipping missing duplicate", "duplicate_id", dupID.String())
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch duplicate %s: %w", dupID, err))
			continue
		}
		if dup.Status == domain.AccountMerged {
			// Terminal state; re-merging the same pair converges here.
			if dup.MergedInto != nil && *dup.MergedInto == primaryID {
				res.MergedAccountIDs = append(res.MergedAccountIDs, dupID)
			}
			continue
		}

		for platform, id := range dup.PlatformLinks {
			if id == "" {
				continue
			}
			if _, taken := accumulated[platform]; !taken {
				accumulated[platform] = id
			}
		}

		// Sessions move before the status flip so a retry after a
		// partial failure re-runs the transfer.
		moved, err := m.repo.ReassignSessions(ctx, dupID, primaryID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reassign sessions of %s: %w", dupID, err))
			continue
		}
		if err := m.repo.MarkMerged(ctx, dupID, primaryID, m.clk.Now()); err != nil {
			errs = append(errs, fmt.Errorf("mark %s merged: %w", dupID, err))
			continue
		}

		res.MergedAccountIDs = append(res.MergedAccountIDs, dupID)
		m.logger.Info("account merged",
			"primary_id", primaryID.String(),
			"duplicate_id", dupID.String(),
			"sessions_moved", moved,
		)
	}

	if len(accumulated) > 0 {
		if err := m.applyLinks(ctx, primaryID, accumulated, &res); err != nil {
			errs = append(errs, err)
		}
	}

	res.Err = errors.Join(errs...)
	res.Success = res.Err == nil
	return res
}

// applyLinks bulk-applies the accumulated platform links onto the
// primary. The primary's own link wins when both sides carry an id for
// the same platform; only missing platforms are filled in.
func (m *Merger) applyLinks(ctx context.Context, primaryID uuid.UUID, accumulated map[domain.Platform]string, res *MergeResult) error {
	primary, err := m.repo.GetByID(ctx, primaryID)
	if err != nil {
		return fmt.Errorf("fetch primary %s: %w", primaryID, err)
	}

	union := make(map[domain.Platform]string, len(primary.PlatformLinks)+len(accumulated))
	for platform, id := range primary.PlatformLinks {
		if id != "" {
			union[platform] = id
		}
	}
	toApply := make(map[domain.Platform]string)
	for platform, id := range accumulated {
		if _, exists := union[platform]; !exists {
			toApply[platform] = id
			union[platform] = id
		}
	}

	if len(toApply) > 0 {
		if err := m.repo.UpdatePlatformLinks(ctx, primaryID, toApply); err != nil {
			return fmt.Errorf("apply platform links to %s: %w", primaryID, err)
		}
	}
	res.MergedPlatformLinks = union
	return nil
}
