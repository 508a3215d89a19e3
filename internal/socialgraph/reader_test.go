package socialgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/pacelog/pacelog/internal/user"
)

// failingAdjacency always errors, simulating a transient store failure.
type failingAdjacency struct{}

func (failingAdjacency) FollowingIDs(context.Context, string) ([]string, error) {
	return nil, errors.New("store unavailable")
}

func (failingAdjacency) FollowerIDs(context.Context, string) ([]string, error) {
	return nil, errors.New("store unavailable")
}

func TestFollowing_PrimaryLookup(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("viewer", "alice"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := adj.Follow("viewer", "bob"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	reader := NewReader(adj, nil, nil, nil)
	set := reader.Following(context.Background(), "viewer")

	if len(set) != 2 {
		t.Fatalf("expected 2 followees, got %d", len(set))
	}
	if _, ok := set["alice"]; !ok {
		t.Error("missing alice")
	}
}

func TestFollowing_EmptyIsNotError(t *testing.T) {
	reader := NewReader(NewInMemoryAdjacencyStore(), nil, nil, nil)
	set := reader.Following(context.Background(), "loner")

	if set == nil {
		t.Fatal("expected empty set, got nil")
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(set))
	}
}

func TestFollowing_LegacyFallbackWhenPrimaryEmpty(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	edges := NewInMemoryEdgeStore()
	if err := edges.AddEdge(Edge{FollowerID: "viewer", FolloweeID: "alice"}); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	reader := NewReader(adj, edges, nil, nil)
	set := reader.Following(context.Background(), "viewer")

	if _, ok := set["alice"]; !ok {
		t.Error("expected legacy edge-derived followee")
	}
}

func TestFollowing_NoFallbackWhenPrimaryNonEmpty(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("viewer", "alice"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	edges := NewInMemoryEdgeStore()
	// Stale legacy edge that must not leak into the result.
	if err := edges.AddEdge(Edge{FollowerID: "viewer", FolloweeID: "stale"}); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	reader := NewReader(adj, edges, nil, nil)
	set := reader.Following(context.Background(), "viewer")

	if _, ok := set["stale"]; ok {
		t.Error("legacy edge used despite non-empty primary")
	}
	if len(set) != 1 {
		t.Fatalf("expected 1 followee, got %d", len(set))
	}
}

func TestFollowing_ErrorDegradesToEmpty(t *testing.T) {
	reader := NewReader(failingAdjacency{}, nil, nil, nil)
	set := reader.Following(context.Background(), "viewer")

	if len(set) != 0 {
		t.Fatalf("expected empty set on store error, got %d entries", len(set))
	}
}

func TestFollowing_NeverIncludesSelf(t *testing.T) {
	edges := NewInMemoryEdgeStore()
	if err := edges.AddEdge(Edge{FollowerID: "viewer", FolloweeID: "viewer"}); err == nil {
		t.Fatal("expected self-edge rejection")
	}

	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("viewer", "viewer"); err != ErrSelfEdge {
		t.Fatalf("expected ErrSelfEdge, got %v", err)
	}
}

func TestFollow_DuplicateEdgeRejected(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("a", "b"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := adj.Follow("a", "b"); err != ErrEdgeExists {
		t.Fatalf("expected ErrEdgeExists, got %v", err)
	}
}

func TestFollowers_LazyCountRepair(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("alice", "target"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := adj.Follow("bob", "target"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	users := user.NewInMemoryStore()
	users.Put(&user.User{ID: "target", Username: "target"})

	reader := NewReader(adj, nil, users, nil)
	set := reader.Followers(context.Background(), "target")
	if len(set) != 2 {
		t.Fatalf("expected 2 followers, got %d", len(set))
	}

	repaired, err := users.GetByID(context.Background(), "target")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if repaired.FollowersCount == nil || *repaired.FollowersCount != 2 {
		t.Errorf("expected followers count repaired to 2, got %v", repaired.FollowersCount)
	}
}

func TestFollowers_RepairSkippedWhenCountPresent(t *testing.T) {
	adj := NewInMemoryAdjacencyStore()
	if err := adj.Follow("alice", "target"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	users := user.NewInMemoryStore()
	stale := 99
	users.Put(&user.User{ID: "target", FollowersCount: &stale})

	reader := NewReader(adj, nil, users, nil)
	reader.Followers(context.Background(), "target")

	u, err := users.GetByID(context.Background(), "target")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	// A present (even stale) counter is left alone; repair only fills gaps.
	if *u.FollowersCount != 99 {
		t.Errorf("repair overwrote a present counter: %d", *u.FollowersCount)
	}
}
