package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/domain"
)

func newTestMerger(repo *fakeRepo) *Merger {
	return NewMerger(repo, clock.NewFake(testTime), nil)
}

func TestMergeMovesSessionsAndLinks(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	primary := repo.add(&domain.Account{
		PhoneNumber:   "+221770000100",
		PlatformLinks: map[domain.Platform]string{domain.PlatformTelegram: "tg-primary"},
	})
	dup := repo.add(&domain.Account{
		PhoneNumber: "+221770000100",
		PlatformLinks: map[domain.Platform]string{
			domain.PlatformTelegram: "tg-dup",
			domain.PlatformWhatsApp: "wa-dup",
		},
	})
	repo.addSession(dup.ID)
	repo.addSession(dup.ID)

	res := newTestMerger(repo).MergeDuplicateAccounts(context.Background(), primary.ID, []uuid.UUID{dup.ID})

	if !res.Success {
		t.Fatalf("merge failed: %v", res.Err)
	}
	if len(res.MergedAccountIDs) != 1 || res.MergedAccountIDs[0] != dup.ID {
		t.Fatalf("merged ids = %v, want [%s]", res.MergedAccountIDs, dup.ID)
	}

	merged, _ := repo.GetByID(context.Background(), dup.ID)
	if merged.Status != domain.AccountMerged {
		t.Fatalf("duplicate status = %s, want MERGED", merged.Status)
	}
	if merged.MergedInto == nil || *merged.MergedInto != primary.ID {
		t.Fatal("duplicate must point at the primary")
	}
	if merged.MergedAt == nil || !merged.MergedAt.Equal(testTime) {
		t.Fatalf("merged_at = %v, want clock time", merged.MergedAt)
	}

	if n := repo.sessionCount(primary.ID); n != 2 {
		t.Fatalf("primary sessions = %d, want 2", n)
	}
	if n := repo.sessionCount(dup.ID); n != 0 {
		t.Fatalf("duplicate sessions = %d, want 0", n)
	}

	// The primary's own telegram link survives; only the missing
	// whatsapp link is taken from the duplicate.
	if res.MergedPlatformLinks[domain.PlatformTelegram] != "tg-primary" {
		t.Fatalf("telegram link = %q, want primary's to win", res.MergedPlatformLinks[domain.PlatformTelegram])
	}
	if res.MergedPlatformLinks[domain.PlatformWhatsApp] != "wa-dup" {
		t.Fatalf("whatsapp link = %q, want filled from duplicate", res.MergedPlatformLinks[domain.PlatformWhatsApp])
	}
	survivor, _ := repo.GetByID(context.Background(), primary.ID)
	if survivor.PlatformLinks[domain.PlatformTelegram] != "tg-primary" {
		t.Fatal("primary link overwritten")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	primary := repo.add(&domain.Account{PhoneNumber: "+221770000101"})
	dup := repo.add(&domain.Account{PhoneNumber: "+221770000101"})
	repo.addSession(dup.ID)

	m := newTestMerger(repo)
	first := m.MergeDuplicateAccounts(context.Background(), primary.ID, []uuid.UUID{dup.ID})
	if !first.Success {
		t.Fatalf("first merge failed: %v", first.Err)
	}

	second := m.MergeDuplicateAccounts(context.Background(), primary.ID, []uuid.UUID{dup.ID})
	if !second.Success {
		t.Fatalf("repeat merge failed: %v", second.Err)
	}
	if len(second.MergedAccountIDs) != 1 || second.MergedAccountIDs[0] != dup.ID {
		t.Fatalf("repeat merged ids = %v, want the already-merged id reported", second.MergedAccountIDs)
	}
	if n := repo.sessionCount(primary.ID); n != 1 {
		t.Fatalf("primary sessions = %d, want 1 (no double transfer)", n)
	}
}

func TestMergeSkipsSelfAndMissing(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	primary := repo.add(&domain.Account{PhoneNumber: "+221770000102"})
	dup := repo.add(&domain.Account{PhoneNumber: "+221770000102"})
	ghost := mustUUID("9e8f7a6b-0000-4000-8000-0000000000aa")

	res := newTestMerger(repo).MergeDuplicateAccounts(
		context.Background(), primary.ID, []uuid.UUID{primary.ID, ghost, dup.ID})

	if !res.Success {
		t.Fatalf("merge failed: %v", res.Err)
	}
	if len(res.MergedAccountIDs) != 1 || res.MergedAccountIDs[0] != dup.ID {
		t.Fatalf("merged ids = %v, want only the real duplicate", res.MergedAccountIDs)
	}
	survivor, _ := repo.GetByID(context.Background(), primary.ID)
	if survivor.Status != domain.AccountActive {
		t.Fatal("primary must stay ACTIVE")
	}
}

func TestMergePartialFailureIsolatesPerDuplicate(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	primary := repo.add(&domain.Account{PhoneNumber: "+221770000103"})
	good := repo.add(&domain.Account{PhoneNumber: "+221770000103"})
	bad := repo.add(&domain.Account{PhoneNumber: "+221770000103"})
	repo.markMergedErr[bad.ID] = errors.New("write conflict")

	res := newTestMerger(repo).MergeDuplicateAccounts(
		context.Background(), primary.ID, []uuid.UUID{bad.ID, good.ID})

	if res.Success {
		t.Fatal("expected failure reported for the bad duplicate")
	}
	if res.Err == nil {
		t.Fatal("expected joined error")
	}
	if len(res.MergedAccountIDs) != 1 || res.MergedAccountIDs[0] != good.ID {
		t.Fatalf("merged ids = %v, want the good duplicate completed", res.MergedAccountIDs)
	}

	merged, _ := repo.GetByID(context.Background(), good.ID)
	if merged.Status != domain.AccountMerged {
		t.Fatal("good duplicate should have merged despite the sibling failure")
	}
	stuck, _ := repo.GetByID(context.Background(), bad.ID)
	if stuck.Status != domain.AccountActive {
		t.Fatal("failed duplicate must remain ACTIVE for a retry")
	}
}
