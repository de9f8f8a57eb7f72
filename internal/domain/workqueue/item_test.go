package workqueue

import (
	"context"
	"testing"
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
)

func TestItem_CompletedAtTracksStatus(t *testing.T) {
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = func() time.Time { return time.Now().UTC() } }()

	svc := crud.NewService(Kind, crud.NewMemoryRepo(Kind))
	ctx := context.Background()
	it := &Item{Title: "Resubmit claim 8812", ItemType: "claim"}
	if err := svc.Create(ctx, it); err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.Status != StatusOpen || it.CompletedAt != nil {
		t.Errorf("unexpected new item state %+v", it)
	}

	done := &Item{Title: it.Title, ItemType: "claim", Status: StatusDone, Assignee: "biller-1"}
	if err := svc.Update(ctx, it.ID, done); err != nil {
		t.Fatalf("update: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(fixed) {
		t.Errorf("expected completed_at %v, got %v", fixed, done.CompletedAt)
	}

	reopened := &Item{Title: it.Title, ItemType: "claim", Status: StatusOpen, CompletedAt: &fixed}
	if err := svc.Update(ctx, it.ID, reopened); err != nil {
		t.Fatalf("update: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Error("expected completed_at cleared on reopen")
	}
}

func TestItem_InProgressNeedsAssignee(t *testing.T) {
	svc := crud.NewService(Kind, crud.NewMemoryRepo(Kind))
	err := svc.Create(context.Background(), &Item{Title: "Verify eligibility", ItemType: "eligibility", Status: StatusInProgress})
	if !crud.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
