package devserver

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"seasoning/internal/logging"
	"seasoning/internal/page"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(ttl, logging.Discard())
	store.now = clock.Now
	return store, clock
}

func blankPage(t *testing.T) *page.Page {
	t.Helper()
	p, err := page.Parse(strings.NewReader(`<p id="x"></p>`), page.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestStoreGetRefreshesAndExpires(t *testing.T) {
	store, clock := newTestStore(t, time.Minute)
	cancelled := false
	sess := store.Add("home", blankPage(t), func() { cancelled = true })
	if sess.ID == "" || sess.Name != "home" {
		t.Fatalf("unexpected session %+v", sess)
	}

	clock.Advance(50 * time.Second)
	if _, ok := store.Get(sess.ID); !ok {
		t.Fatalf("expected session to be alive")
	}
	clock.Advance(50 * time.Second)
	if !store.Has(sess.ID) {
		t.Fatalf("expected Get to refresh the session")
	}

	clock.Advance(2 * time.Minute)
	if store.Has(sess.ID) {
		t.Fatalf("expected Has to report expiry")
	}
	if _, ok := store.Get(sess.ID); ok {
		t.Fatalf("expected session to expire")
	}
	if !cancelled {
		t.Fatalf("expected expiry to cancel the session")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session to be dropped")
	}
}

func TestStoreSweepClosesIdleSessions(t *testing.T) {
	store, clock := newTestStore(t, time.Minute)
	var closed []string
	idle := store.Add("home", blankPage(t), func() { closed = append(closed, "idle") })
	clock.Advance(45 * time.Second)
	busy := store.Add("recipe-edit", blankPage(t), func() { closed = append(closed, "busy") })
	clock.Advance(30 * time.Second)

	if n := store.Sweep(); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if store.Has(idle.ID) || !store.Has(busy.ID) {
		t.Fatalf("sweep removed the wrong session")
	}
	if len(closed) != 1 || closed[0] != "idle" {
		t.Fatalf("unexpected cancellations %v", closed)
	}
}

func TestStoreRemove(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	sess := store.Add("home", blankPage(t), nil)
	if !store.Remove(sess.ID) {
		t.Fatalf("expected remove to succeed")
	}
	if store.Remove(sess.ID) {
		t.Fatalf("expected second remove to report missing")
	}
}

func TestRunSweeperClosesEverythingOnShutdown(t *testing.T) {
	store := NewStore(time.Hour, logging.Discard())
	stopped := make(chan struct{})
	store.Add("home", blankPage(t), func() { close(stopped) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("expected shutdown to cancel open sessions")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no sessions after shutdown")
	}
}
