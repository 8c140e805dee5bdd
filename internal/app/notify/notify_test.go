package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/sqlite"
)

func newTestBus(t *testing.T, capacity int) *Bus {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, capacity, nil)
}

func TestNew_DefaultCapacity(t *testing.T) {
	b := newTestBus(t, 0)
	if b.capacity != 1000 {
		t.Errorf("capacity = %d, want 1000", b.capacity)
	}
}

func TestPublish_Fields(t *testing.T) {
	b := newTestBus(t, 10)
	n, ok := b.Publish(context.Background(), domain.ActionCreditIssuance, "Producer issued 5 GHC", "0xproducer")
	if !ok {
		t.Fatal("Publish() = false, want true")
	}
	if !strings.HasPrefix(n.ID, "CREDIT_ISSUANCE_") {
		t.Errorf("ID = %q, want CREDIT_ISSUANCE_ prefix", n.ID)
	}
	if n.NotifiedBy != "system" {
		t.Errorf("NotifiedBy = %q, want system", n.NotifiedBy)
	}
}

func TestPublish_IDsUniqueWithinSecond(t *testing.T) {
	b := newTestBus(t, 10)
	a, _ := b.Publish(context.Background(), domain.ActionCreditPurchase, "a", "0xf")
	c, _ := b.Publish(context.Background(), domain.ActionCreditPurchase, "b", "0xf")
	if a.ID == c.ID {
		t.Errorf("notification ids collide: %s", a.ID)
	}
}

func TestPublish_EvictsOldest(t *testing.T) {
	b := newTestBus(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		b.Publish(ctx, domain.ActionRegulatoryAction, fmt.Sprintf("action %d", i), "")
	}

	all, err := b.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3", len(all))
	}
	if all[0].Details != "action 2" {
		t.Errorf("oldest retained = %q, want action 2", all[0].Details)
	}
}

func TestRecent_Limit(t *testing.T) {
	b := newTestBus(t, 100)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		b.Publish(ctx, domain.ActionCreditPurchase, fmt.Sprintf("p%d", i), "")
	}

	recent, _ := b.Recent(ctx, 0)
	if len(recent) != DefaultRecentLimit {
		t.Fatalf("len(Recent(0)) = %d, want %d", len(recent), DefaultRecentLimit)
	}
	if recent[len(recent)-1].Details != "p59" {
		t.Errorf("newest = %q, want p59", recent[len(recent)-1].Details)
	}
}
