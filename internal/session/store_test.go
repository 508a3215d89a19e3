package session

import (
	"context"
	"testing"
	"time"
)

func TestCreate_AssignsIDAndDefaults(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{
		UserID:          "user1",
		Title:           "Morning reading",
		DurationSeconds: 1800,
		StartTime:       time.Now(),
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sess.ID == "" {
		t.Error("expected non-empty ID")
	}
	if sess.Visibility != VisibilityEveryone {
		t.Errorf("expected default visibility everyone, got %s", sess.Visibility)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreate_ZeroDurationIsValid(t *testing.T) {
	store := NewInMemoryStore()

	sess := &Session{UserID: "user1", DurationSeconds: 0}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("zero-duration session should be valid: %v", err)
	}
}

func TestCreate_NegativeDurationRejected(t *testing.T) {
	store := NewInMemoryStore()

	sess := &Session{UserID: "user1", DurationSeconds: -1}
	if err := store.Create(context.Background(), sess); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.GetByID(context.Background(), "missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestList_OrderingAndTieBreak(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	// Two sessions share a timestamp to exercise the id tie-break.
	ids := []string{"b", "a", "c"}
	times := []time.Time{now, now, now.Add(-time.Hour)}
	for i, id := range ids {
		sess := &Session{ID: id, UserID: "user1", CreatedAt: times[i]}
		if err := store.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	results, hasMore, err := store.List(ctx, Query{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if hasMore {
		t.Error("expected hasMore=false")
	}

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.ID
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestList_CursorResumesAfterPosition(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		sess := &Session{
			UserID:    "user1",
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	first, hasMore, err := store.List(ctx, Query{Limit: 4})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(first) != 4 || !hasMore {
		t.Fatalf("expected 4 results with more remaining, got %d hasMore=%v", len(first), hasMore)
	}

	second, _, err := store.List(ctx, Query{Limit: 10, Cursor: first[len(first)-1].ID})
	if err != nil {
		t.Fatalf("List with cursor failed: %v", err)
	}
	if len(second) != 6 {
		t.Fatalf("expected remaining 6 results, got %d", len(second))
	}

	seen := make(map[string]bool)
	for _, s := range append(first, second...) {
		if seen[s.ID] {
			t.Fatalf("duplicate session %s across pages", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestList_FilterByUserAndVisibility(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	specs := []struct {
		user string
		vis  Visibility
	}{
		{"alice", VisibilityEveryone},
		{"alice", VisibilityPrivate},
		{"bob", VisibilityEveryone},
	}
	for _, spec := range specs {
		if err := store.Create(ctx, &Session{UserID: spec.user, Visibility: spec.vis}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	results, _, err := store.List(ctx, Query{
		Filter: Filter{UserID: "alice", Visibility: VisibilityEveryone},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].UserID != "alice" || results[0].Visibility != VisibilityEveryone {
		t.Errorf("wrong session returned: %+v", results[0])
	}
}

func TestList_CreatedAtRange(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	old := &Session{UserID: "u", CreatedAt: now.Add(-10 * 24 * time.Hour)}
	fresh := &Session{UserID: "u", CreatedAt: now.Add(-time.Hour)}
	for _, s := range []*Session{old, fresh} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	results, _, err := store.List(ctx, Query{
		Filter: Filter{CreatedAfter: now.Add(-7 * 24 * time.Hour)},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != fresh.ID {
		t.Fatalf("expected only the recent session, got %d results", len(results))
	}
}

func TestSupport_CountMatchesSet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{UserID: "alice"}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.Support(ctx, sess.ID, "bob")
	if err != nil {
		t.Fatalf("Support failed: %v", err)
	}
	if updated.SupportCount != 1 || len(updated.SupportedBy) != 1 {
		t.Errorf("expected count 1 matching set, got count=%d set=%v", updated.SupportCount, updated.SupportedBy)
	}

	// Supporting again is idempotent.
	updated, err = store.Support(ctx, sess.ID, "bob")
	if err != nil {
		t.Fatalf("repeat Support failed: %v", err)
	}
	if updated.SupportCount != 1 {
		t.Errorf("repeat support should not change count, got %d", updated.SupportCount)
	}

	updated, err = store.Unsupport(ctx, sess.ID, "bob")
	if err != nil {
		t.Fatalf("Unsupport failed: %v", err)
	}
	if updated.SupportCount != 0 || len(updated.SupportedBy) != 0 {
		t.Errorf("expected count back to 0, got count=%d set=%v", updated.SupportCount, updated.SupportedBy)
	}

	// Unsupporting an absent supporter is a no-op, not an error.
	if _, err := store.Unsupport(ctx, sess.ID, "bob"); err != nil {
		t.Fatalf("repeat Unsupport failed: %v", err)
	}
}

func TestSupportUnsupport_Sequence(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{UserID: "alice", SupportedBy: []string{"carol"}}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Repeated support-then-unsupport by the same user returns the count
	// to its original value.
	for i := 0; i < 3; i++ {
		if _, err := store.Support(ctx, sess.ID, "bob"); err != nil {
			t.Fatalf("Support failed: %v", err)
		}
		if _, err := store.Unsupport(ctx, sess.ID, "bob"); err != nil {
			t.Fatalf("Unsupport failed: %v", err)
		}
	}

	final, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.SupportCount != 1 {
		t.Errorf("expected count restored to 1, got %d", final.SupportCount)
	}
	if !final.IsSupportedBy("carol") {
		t.Error("original supporter lost")
	}
}

func TestEffectiveActivityID_LegacyFallback(t *testing.T) {
	s := &Session{CategoryID: "legacy-cat"}
	if got := s.EffectiveActivityID(); got != "legacy-cat" {
		t.Errorf("expected legacy category fallback, got %q", got)
	}

	s.ActivityID = "act-1"
	if got := s.EffectiveActivityID(); got != "act-1" {
		t.Errorf("expected activity_id preferred, got %q", got)
	}
}

func TestVisibleTo(t *testing.T) {
	follows := map[string]struct{}{"alice": {}}

	tests := []struct {
		name    string
		sess    Session
		viewer  string
		visible bool
	}{
		{"own private", Session{UserID: "v", Visibility: VisibilityPrivate}, "v", true},
		{"other private", Session{UserID: "alice", Visibility: VisibilityPrivate}, "v", false},
		{"everyone", Session{UserID: "alice", Visibility: VisibilityEveryone}, "v", true},
		{"followers, viewer follows owner", Session{UserID: "alice", Visibility: VisibilityFollowers}, "v", true},
		{"followers, viewer does not follow", Session{UserID: "bob", Visibility: VisibilityFollowers}, "v", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.VisibleTo(tt.viewer, follows); got != tt.visible {
				t.Errorf("VisibleTo = %v, want %v", got, tt.visible)
			}
		})
	}
}
