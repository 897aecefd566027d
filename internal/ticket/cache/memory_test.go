package cache

import (
	"testing"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

func newTestTicket(id string) model.GenericTicket {
	return model.NewGenericTicket(model.TicketInput{
		ID:       id,
		Platform: model.Jira,
		Title:    "Test ticket " + id,
	})
}

func TestMemoryCacheSetGetRoundTrip(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	tk := newTestTicket("PROJ-1")
	c.Set(tk, 0, "")

	got, ok := c.Get(model.NewCacheKey(model.Jira, "PROJ-1"))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.ID() != "PROJ-1" || got.Title() != tk.Title() {
		t.Fatalf("round-tripped ticket mismatch: %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10, time.Millisecond)
	tk := newTestTicket("PROJ-2")
	c.Set(tk, time.Millisecond, "")
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(model.NewCacheKey(model.Jira, "PROJ-2")); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on access, size=%d", c.Size())
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	c.Set(newTestTicket("A"), 0, "")
	c.Set(newTestTicket("B"), 0, "")
	// Touch A so B becomes the least-recently-used entry.
	c.Get(model.NewCacheKey(model.Jira, "A"))
	c.Set(newTestTicket("C"), 0, "")

	if c.Size() != 2 {
		t.Fatalf("expected size capped at 2, got %d", c.Size())
	}
	if _, ok := c.Get(model.NewCacheKey(model.Jira, "B")); ok {
		t.Fatalf("expected B to be evicted as least-recently-used")
	}
	if _, ok := c.Get(model.NewCacheKey(model.Jira, "A")); !ok {
		t.Fatalf("expected A to survive eviction")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	key := model.NewCacheKey(model.Jira, "X")
	c.Set(newTestTicket("X"), 0, "")
	c.Invalidate(key)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestMemoryCacheClonesOnReturn(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	tk := newTestTicket("CLONE-1")
	c.Set(tk, 0, "")

	got1, _ := c.Get(model.NewCacheKey(model.Jira, "CLONE-1"))
	got2, _ := c.Get(model.NewCacheKey(model.Jira, "CLONE-1"))
	if got1.Title() != got2.Title() {
		t.Fatalf("expected observationally equal tickets across reads")
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	c.Set(newTestTicket("J-1"), 0, "")
	linear := model.NewGenericTicket(model.TicketInput{ID: "L-1", Platform: model.Linear, Title: "x"})
	c.Set(linear, 0, "")

	stats := c.Stats()
	if stats["jira"] != 1 || stats["linear"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
