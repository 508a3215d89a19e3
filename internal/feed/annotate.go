package feed

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"

	"github.com/pacelog/pacelog/internal/activity"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/user"
)

// annotationBatchSize bounds the number of in-flight store reads while
// resolving author and activity summaries for a page.
const annotationBatchSize = 10

// annotate enriches survivors with author/activity summaries and the viewer's
// support state. Sessions whose author no longer resolves are dropped
// entirely: a session from a deleted account must not resurface with
// placeholder data.
func (a *Assembler) annotate(ctx context.Context, viewerID string, survivors []*session.Session) ([]Item, error) {
	authorIDs := make([]string, 0, len(survivors))
	activityIDs := make([]string, 0, len(survivors))
	seenAuthors := make(map[string]struct{})
	seenActivities := make(map[string]struct{})
	for _, s := range survivors {
		if _, ok := seenAuthors[s.UserID]; !ok {
			seenAuthors[s.UserID] = struct{}{}
			authorIDs = append(authorIDs, s.UserID)
		}
		if id := s.EffectiveActivityID(); id != "" {
			if _, ok := seenActivities[id]; !ok {
				seenActivities[id] = struct{}{}
				activityIDs = append(activityIDs, id)
			}
		}
	}

	authors := fetchBatched(ctx, authorIDs, func(ctx context.Context, id string) (*user.User, error) {
		return a.stores.Users.GetByID(ctx, id)
	})
	var activities map[string]*activity.Activity
	if a.stores.Activities != nil {
		activities = fetchBatched(ctx, activityIDs, func(ctx context.Context, id string) (*activity.Activity, error) {
			return a.stores.Activities.GetByID(ctx, id)
		})
	}

	items := make([]Item, 0, len(survivors))
	for _, s := range survivors {
		author, ok := authors[s.UserID]
		if !ok {
			// Data-integrity gap: the author record is gone. Drop the
			// session and log for offline cleanup.
			a.logger.Warn("dropping session with unresolvable author",
				slog.String("session_id", s.ID),
				slog.String("author_id", s.UserID))
			if a.metrics != nil {
				a.metrics.IncDroppedAuthor()
			}
			continue
		}
		items = append(items, Item{
			Session:     s,
			Author:      author,
			Activity:    activities[s.EffectiveActivityID()],
			IsSupported: s.IsSupportedBy(viewerID),
		})
	}
	return items, nil
}

// fetchBatched looks up records by id in fixed-size concurrent groups,
// awaiting each group before starting the next. A lookup that fails (not
// found, transient error, permission denied) simply leaves its id out of the
// result; callers decide what absence means.
func fetchBatched[T any](ctx context.Context, ids []string, get func(context.Context, string) (*T, error)) map[string]*T {
	type result struct {
		id  string
		rec *T
	}

	out := make(map[string]*T, len(ids))
	for start := 0; start < len(ids); start += annotationBatchSize {
		end := start + annotationBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		results := make([]result, len(batch))

		var wg conc.WaitGroup
		for i, id := range batch {
			wg.Go(func() {
				rec, err := get(ctx, id)
				if err != nil {
					return
				}
				results[i] = result{id: id, rec: rec}
			})
		}
		wg.Wait()

		for _, r := range results {
			if r.rec != nil {
				out[r.id] = r.rec
			}
		}
	}
	return out
}
