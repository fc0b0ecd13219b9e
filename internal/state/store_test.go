package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aonescu/kubespresso/internal/types"
)

func decision(name string, outcome types.Outcome) types.Decision {
	return types.Decision{
		ID:        "id-" + name,
		Kind:      "Job",
		Namespace: "default",
		Name:      name,
		EventType: types.Modified,
		Version:   "1",
		Outcome:   outcome,
		Reason:    "criteria satisfied",
		DecidedAt: time.Now(),
	}
}

func TestMemoryJournal_Record(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()

	if err := journal.Record(ctx, decision("job-1", types.Acted)); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	recent, err := journal.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 decision, got %d", len(recent))
	}
	if recent[0].Name != "job-1" {
		t.Errorf("Expected name job-1, got %s", recent[0].Name)
	}
	if recent[0].Outcome != types.Acted {
		t.Errorf("Expected outcome acted, got %s", recent[0].Outcome)
	}
}

func TestMemoryJournal_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()

	for i := 0; i < 5; i++ {
		journal.Record(ctx, decision(fmt.Sprintf("job-%d", i), types.Ineligible))
	}

	recent, _ := journal.Recent(ctx, 3)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 decisions, got %d", len(recent))
	}
	if recent[0].Name != "job-4" || recent[2].Name != "job-2" {
		t.Errorf("Unexpected order: %s .. %s", recent[0].Name, recent[2].Name)
	}

	all, _ := journal.Recent(ctx, 0)
	if len(all) != 5 {
		t.Errorf("Expected limit 0 to return everything, got %d", len(all))
	}
}

func TestMemoryJournal_ForResource(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()

	journal.Record(ctx, decision("job-a", types.Acted))
	journal.Record(ctx, decision("job-b", types.Ineligible))
	journal.Record(ctx, decision("job-a", types.Ineligible))

	other := decision("job-a", types.Acted)
	other.Namespace = "team-x"
	journal.Record(ctx, other)

	got, _ := journal.ForResource(ctx, "Job", "default", "job-a", 10)
	if len(got) != 2 {
		t.Fatalf("Expected 2 decisions for default/job-a, got %d", len(got))
	}
	if got[0].Outcome != types.Ineligible {
		t.Errorf("Expected newest decision first, got %s", got[0].Outcome)
	}

	none, _ := journal.ForResource(ctx, "Job", "default", "missing", 10)
	if len(none) != 0 {
		t.Errorf("Expected no decisions, got %d", len(none))
	}
}

func TestMemoryJournal_Capacity(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournalWithCapacity(3)

	for i := 0; i < 10; i++ {
		journal.Record(ctx, decision(fmt.Sprintf("job-%d", i), types.Acted))
	}

	if journal.Len() != 3 {
		t.Fatalf("Expected journal to keep 3 entries, got %d", journal.Len())
	}
	recent, _ := journal.Recent(ctx, 10)
	if recent[2].Name != "job-7" {
		t.Errorf("Expected oldest kept entry job-7, got %s", recent[2].Name)
	}
}

func TestMemoryJournal_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			journal.Record(ctx, decision(fmt.Sprintf("job-%d", id), types.Acted))
			journal.Recent(ctx, 5)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if journal.Len() != 10 {
		t.Errorf("Expected 10 decisions, got %d", journal.Len())
	}
}
