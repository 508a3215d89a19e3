package socialgraph

import (
	"context"
	"log/slog"

	"github.com/pacelog/pacelog/internal/user"
)

// Reader resolves a user's follow sets across the two storage
// representations.
//
// Resolution policy: the adjacency set is consulted first; the legacy edge
// list is scanned only when the primary lookup comes back empty. A user with
// genuinely zero follows therefore always pays the fallback-scan cost — the
// alternative (consulting the legacy list first) would risk masking an
// intentionally emptied primary structure with stale edges.
//
// Failure semantics: any underlying fetch error degrades to an empty set.
// Callers treat "can't determine the graph" the same as "no graph"; feed
// assembly never hard-fails on a viewer's own graph.
type Reader struct {
	adjacency AdjacencyStore
	edges     EdgeStore
	users     user.Store
	logger    *slog.Logger
}

// NewReader creates a Reader. edges and users may be nil: without an edge
// store there is no legacy fallback, and without a user store no counter
// repair is attempted.
func NewReader(adjacency AdjacencyStore, edges EdgeStore, users user.Store, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		adjacency: adjacency,
		edges:     edges,
		users:     users,
		logger:    logger,
	}
}

// Following returns the set of user ids userID follows. The set never
// contains userID itself and is empty (never nil-deref, never an error) when
// the user follows no one or the graph cannot be read.
func (r *Reader) Following(ctx context.Context, userID string) map[string]struct{} {
	ids, err := r.adjacency.FollowingIDs(ctx, userID)
	if err != nil {
		r.logger.Warn("following lookup failed, treating as empty",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return map[string]struct{}{}
	}

	set := toSet(ids, userID)
	if len(set) > 0 || r.edges == nil {
		return set
	}

	// Primary came back empty; derive from the legacy edge list.
	fromEdges, err := r.edges.EdgesFrom(ctx, userID)
	if err != nil {
		r.logger.Warn("legacy edge scan failed, treating as empty",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return map[string]struct{}{}
	}
	for _, e := range fromEdges {
		if e.FolloweeID != userID {
			set[e.FolloweeID] = struct{}{}
		}
	}
	return set
}

// Followers returns the set of user ids following userID, with the same
// resolution and failure semantics as Following. When the user's denormalized
// followers counter has never been written it is lazily repaired from the
// derived set; the repair write is idempotent and its failure never fails the
// read.
func (r *Reader) Followers(ctx context.Context, userID string) map[string]struct{} {
	ids, err := r.adjacency.FollowerIDs(ctx, userID)
	if err != nil {
		r.logger.Warn("followers lookup failed, treating as empty",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return map[string]struct{}{}
	}

	set := toSet(ids, userID)
	if len(set) == 0 && r.edges != nil {
		toEdges, err := r.edges.EdgesTo(ctx, userID)
		if err != nil {
			r.logger.Warn("legacy edge scan failed, treating as empty",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			return map[string]struct{}{}
		}
		for _, e := range toEdges {
			if e.FollowerID != userID {
				set[e.FollowerID] = struct{}{}
			}
		}
	}

	r.repairFollowersCount(ctx, userID, len(set))
	return set
}

// repairFollowersCount rewrites the denormalized counter when it was never
// set. Best effort only.
func (r *Reader) repairFollowersCount(ctx context.Context, userID string, count int) {
	if r.users == nil {
		return
	}
	u, err := r.users.GetByID(ctx, userID)
	if err != nil || u.FollowersCount != nil {
		return
	}
	if err := r.users.SetFollowersCount(ctx, userID, count); err != nil {
		r.logger.Warn("followers count repair failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

func toSet(ids []string, exclude string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != exclude {
			set[id] = struct{}{}
		}
	}
	return set
}
