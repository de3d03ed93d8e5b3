package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/clock"
)

// CleanupJob is the out-of-band pass that restores phone uniqueness.
// It exists because the real-time check is optimistic: two concurrent
// creations for a brand-new phone number can both observe "no
// duplicate" before either account is persisted.
type CleanupJob struct {
	repo   AccountRepository
	merger *Merger
	clk    clock.Clock
	logger *slog.Logger
}

func NewCleanupJob(repo AccountRepository, merger *Merger, clk clock.Clock, logger *slog.Logger) *CleanupJob {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{repo: repo, merger: merger, clk: clk, logger: logger}
}

// CleanupPotentialDuplicates merges pairs of ACTIVE accounts created in
// the last daysThreshold days that share the same normalized phone
// number. The self-join yields each pair twice, so pairs are
// canonicalized by sorted id tuple and repeats skipped. The earlier
// createdAt wins as primary; at exactly equal timestamps the
// lexicographically smaller id does. Per-pair failures are logged and
// excluded from the merged counter without stopping the run.
func (j *CleanupJob) CleanupPotentialDuplicates(ctx context.Context, daysThreshold int) (CleanupSummary, error) {
	if daysThreshold <= 0 {
		daysThreshold = 7
	}
	since := j.clk.Now().AddDate(0, 0, -daysThreshold)

	pairs, err := j.repo.FindPhoneDuplicatePairs(ctx, since)
	if err != nil {
		return CleanupSummary{}, err
	}

	var summary CleanupSummary
	seen := make(map[string]struct{})
	for _, pair := range pairs {
		a, b := pair.AccountID.String(), pair.OtherID.String()
		lo, hi := a, b
		if hi < lo {
			lo, hi = hi, lo
		}
		key := lo + "|" + hi
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		summary.Found++

		primary, other := pair.AccountID, pair.OtherID
		if pair.OtherCreatedAt.Before(pair.CreatedAt) ||
			(pair.OtherCreatedAt.Equal(pair.CreatedAt) && b < a) {
			primary, other = other, primary
		}

		res := j.merger.MergeDuplicateAccounts(ctx, primary, []uuid.UUID{other})
		if res.Success && len(res.MergedAccountIDs) > 0 {
			summary.Merged++
			continue
		}
		if res.Err != nil {
			j.logger.Error("cleanup pair merge failed",
				"phone", pair.PhoneNumber,
				"primary_id", primary.String(),
				"duplicate_id", other.String(),
				"error", res.Err,
			)
		}
	}

	j.logger.Info("duplicate cleanup completed",
		"days_threshold", daysThreshold,
		"found", summary.Found,
		"merged", summary.Merged,
	)
	return summary, nil
}

// CleanupWorker runs the job on a fixed interval.
type CleanupWorker struct {
	job           *CleanupJob
	interval      time.Duration
	daysThreshold int
	logger        *slog.Logger
}

func NewCleanupWorker(job *CleanupJob, interval time.Duration, daysThreshold int, logger *slog.Logger) *CleanupWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{job: job, interval: interval, daysThreshold: daysThreshold, logger: logger}
}

func (w *CleanupWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.job.CleanupPotentialDuplicates(ctx, w.daysThreshold); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("cleanup iteration failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
