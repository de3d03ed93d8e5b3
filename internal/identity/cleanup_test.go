package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/domain"
)

func newTestCleanup(repo *fakeRepo) *CleanupJob {
	clk := clock.NewFake(testTime)
	return NewCleanupJob(repo, NewMerger(repo, clk, nil), clk, nil)
}

func TestCleanupMergesIntoEarliestAccount(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	older := repo.add(&domain.Account{
		PhoneNumber: "+221770000200",
		CreatedAt:   testTime.Add(-48 * time.Hour),
	})
	newer := repo.add(&domain.Account{
		PhoneNumber: "+221770000200",
		CreatedAt:   testTime.Add(-24 * time.Hour),
	})

	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 1 || summary.Merged != 1 {
		t.Fatalf("summary = %+v, want 1 found, 1 merged", summary)
	}

	survivor, _ := repo.GetByID(context.Background(), older.ID)
	if survivor.Status != domain.AccountActive {
		t.Fatal("earlier account must survive as primary")
	}
	merged, _ := repo.GetByID(context.Background(), newer.ID)
	if merged.Status != domain.AccountMerged || merged.MergedInto == nil || *merged.MergedInto != older.ID {
		t.Fatal("later account must be merged into the earlier one")
	}
}

func TestCleanupTieBreaksOnSmallerID(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	createdAt := testTime.Add(-24 * time.Hour)
	smaller := repo.add(&domain.Account{
		ID:          mustUUID("00000000-0000-4000-8000-000000000001"),
		PhoneNumber: "+221770000201",
		CreatedAt:   createdAt,
	})
	larger := repo.add(&domain.Account{
		ID:          mustUUID("00000000-0000-4000-8000-000000000002"),
		PhoneNumber: "+221770000201",
		CreatedAt:   createdAt,
	})

	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Merged != 1 {
		t.Fatalf("summary = %+v, want 1 merged", summary)
	}

	survivor, _ := repo.GetByID(context.Background(), smaller.ID)
	if survivor.Status != domain.AccountActive {
		t.Fatal("lexicographically smaller id must win an exact timestamp tie")
	}
	merged, _ := repo.GetByID(context.Background(), larger.ID)
	if merged.Status != domain.AccountMerged {
		t.Fatal("larger id must be the merged side")
	}
}

func TestCleanupCountsEachPairOnce(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.add(&domain.Account{PhoneNumber: "+221770000202", CreatedAt: testTime.Add(-48 * time.Hour)})
	repo.add(&domain.Account{PhoneNumber: "+221770000202", CreatedAt: testTime.Add(-24 * time.Hour)})

	// The self-join reports (A,B) and (B,A); only one counts.
	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 1 {
		t.Fatalf("found = %d, want canonicalized single pair", summary.Found)
	}
}

func TestCleanupIgnoresAccountsOutsideWindow(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.add(&domain.Account{PhoneNumber: "+221770000203", CreatedAt: testTime.AddDate(0, 0, -30)})
	repo.add(&domain.Account{PhoneNumber: "+221770000203", CreatedAt: testTime.AddDate(0, 0, -20)})

	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 0 {
		t.Fatalf("found = %d, want 0 outside the threshold window", summary.Found)
	}
}

func TestCleanupFailedPairDoesNotStopRun(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.add(&domain.Account{PhoneNumber: "+221770000204", CreatedAt: testTime.Add(-48 * time.Hour)})
	badDup := repo.add(&domain.Account{PhoneNumber: "+221770000204", CreatedAt: testTime.Add(-24 * time.Hour)})
	repo.add(&domain.Account{PhoneNumber: "+221770000205", CreatedAt: testTime.Add(-48 * time.Hour)})
	repo.add(&domain.Account{PhoneNumber: "+221770000205", CreatedAt: testTime.Add(-24 * time.Hour)})
	repo.markMergedErr[badDup.ID] = errors.New("write conflict")

	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 2 {
		t.Fatalf("found = %d, want 2", summary.Found)
	}
	if summary.Merged != 1 {
		t.Fatalf("merged = %d, want the healthy pair only", summary.Merged)
	}
}

func TestCleanupPropagatesQueryError(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.findPairsErr = errors.New("connection refused")

	if _, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 7); err == nil {
		t.Fatal("expected the pair query error surfaced")
	}
}

func TestCleanupDefaultThreshold(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.add(&domain.Account{PhoneNumber: "+221770000206", CreatedAt: testTime.AddDate(0, 0, -6)})
	repo.add(&domain.Account{PhoneNumber: "+221770000206", CreatedAt: testTime.AddDate(0, 0, -5)})

	// Zero threshold falls back to the 7-day default.
	summary, err := newTestCleanup(repo).CleanupPotentialDuplicates(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 1 || summary.Merged != 1 {
		t.Fatalf("summary = %+v, want the pair inside the default window", summary)
	}
}
