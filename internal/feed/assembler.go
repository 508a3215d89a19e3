package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pacelog/pacelog/internal/activity"
	"github.com/pacelog/pacelog/internal/group"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/socialgraph"
	"github.com/pacelog/pacelog/internal/user"
)

// Pagination and fetch tuning.
const (
	// DefaultPageSize is used when a query does not specify one.
	DefaultPageSize = 20
	// MaxPageSize caps a single page request.
	MaxPageSize = 100

	// overfetchFactor is how many raw candidates are fetched per page slot.
	// Set-membership filtering happens client-side, so a batch must carry
	// enough headroom for discarded candidates.
	overfetchFactor = 3

	// trendingWindow bounds ModeTrending candidates by created_at.
	trendingWindow = 7 * 24 * time.Hour
)

// Stores bundles the collaborators the assembler reads from.
type Stores struct {
	Sessions   session.Store
	Graph      *socialgraph.Reader
	Users      user.Store
	Activities activity.Store
	Groups     group.Store
}

// Assembler produces feed pages. Stateless across requests; safe for
// concurrent use.
type Assembler struct {
	stores          Stores
	logger          *slog.Logger
	metrics         *Metrics
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithPageSizes overrides the default and maximum page sizes. Non-positive
// values keep the built-in defaults.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(a *Assembler) {
		if defaultSize > 0 {
			a.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			a.maxPageSize = maxSize
		}
	}
}

// NewAssembler creates a feed assembler.
func NewAssembler(stores Stores, logger *slog.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{
		stores:          stores,
		logger:          logger,
		now:             time.Now,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// plan is the resolved selection strategy for one request.
type plan struct {
	// authors restricts candidates to these author ids when non-nil.
	// nil means no author restriction (all/trending modes).
	authors map[string]struct{}
	// filter is the portion of the predicate the store can apply itself.
	filter session.Filter
	// follows is the viewer's following set, used for followers-visibility
	// checks. May be empty for modes that never pass a followers session.
	follows map[string]struct{}
	// allVisibilities disables the visibility check (own-profile user feed).
	allVisibilities bool
	// shortCircuit means the result is a priori empty: skip the store.
	shortCircuit bool
}

// Assemble produces one feed page for the viewer.
func (a *Assembler) Assemble(ctx context.Context, viewerID string, q Query) (*Page, error) {
	if viewerID == "" {
		return nil, ErrNotAuthenticated
	}
	if !q.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, q.Mode)
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = a.defaultPageSize
	}
	if pageSize > a.maxPageSize {
		pageSize = a.maxPageSize
	}

	start := time.Now()
	p, err := a.buildPlan(ctx, viewerID, q)
	if err != nil {
		return nil, err
	}

	if p.shortCircuit {
		a.observe(q.Mode, start)
		return &Page{Items: []Item{}}, nil
	}

	survivors, hasMore, err := a.collect(ctx, viewerID, q, p, pageSize)
	if err != nil {
		return nil, err
	}

	page := &Page{HasMore: hasMore}
	if len(survivors) > 0 {
		page.NextCursor = survivors[len(survivors)-1].ID
	}
	if !page.HasMore {
		page.NextCursor = ""
	}

	page.Items, err = a.annotate(ctx, viewerID, survivors)
	if err != nil {
		return nil, err
	}

	a.observe(q.Mode, start)
	return page, nil
}

// buildPlan resolves the mode's source set and predicate.
func (a *Assembler) buildPlan(ctx context.Context, viewerID string, q Query) (*plan, error) {
	p := &plan{follows: map[string]struct{}{}}

	switch q.Mode {
	case ModeFollowing:
		p.follows = a.stores.Graph.Following(ctx, viewerID)
		if len(p.follows) == 0 {
			// An unfiltered query here would return the wrong, unrestricted
			// result set, so the empty graph must short-circuit.
			p.shortCircuit = true
			return p, nil
		}
		p.authors = p.follows

	case ModeRecent:
		p.follows = a.stores.Graph.Following(ctx, viewerID)
		if len(p.follows) == 0 {
			own, _, err := a.listSessions(ctx, session.Query{
				Filter: session.Filter{UserID: viewerID},
				Limit:  1,
			})
			if err != nil {
				return nil, err
			}
			if len(own) == 0 {
				p.shortCircuit = true
				return p, nil
			}
		}
		p.authors = make(map[string]struct{}, len(p.follows)+1)
		for id := range p.follows {
			p.authors[id] = struct{}{}
		}
		p.authors[viewerID] = struct{}{}

	case ModeAll:
		p.follows = a.stores.Graph.Following(ctx, viewerID)

	case ModeTrending:
		p.filter.Visibility = session.VisibilityEveryone
		p.filter.CreatedAfter = a.now().Add(-trendingWindow)

	case ModeGroup, ModeGroupUnfollowed:
		if q.GroupID == "" {
			return nil, ErrMissingTarget
		}
		memberIDs, err := a.stores.Groups.ActiveMemberIDs(ctx, q.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group members: %w", err)
		}
		p.follows = a.stores.Graph.Following(ctx, viewerID)
		p.authors = make(map[string]struct{}, len(memberIDs))
		for _, id := range memberIDs {
			if q.Mode == ModeGroupUnfollowed {
				if id == viewerID {
					continue
				}
				if _, followed := p.follows[id]; followed {
					continue
				}
			}
			p.authors[id] = struct{}{}
		}
		if len(p.authors) == 0 {
			p.shortCircuit = true
		}

	case ModeUser:
		if q.TargetUserID == "" {
			return nil, ErrMissingTarget
		}
		// Single-author mode: the store can apply the author filter itself.
		p.filter.UserID = q.TargetUserID
		if q.IsOwnProfile && q.TargetUserID == viewerID {
			p.allVisibilities = true
		} else {
			p.filter.Visibility = session.VisibilityEveryone
		}
	}

	return p, nil
}

// collect over-fetches raw candidates and filters them down to at most
// pageSize survivors. The returned flag reports whether more matching records
// remain past the last survivor.
//
// When an entire over-fetched batch is filtered away the scan continues from
// the last raw candidate; otherwise the page returns after one batch, which
// can legitimately be shorter than pageSize with more records remaining.
func (a *Assembler) collect(ctx context.Context, viewerID string, q Query, p *plan, pageSize int) ([]*session.Session, bool, error) {
	rawLimit := pageSize * overfetchFactor
	cursor := q.Cursor

	for {
		raw, hasMoreRaw, err := a.listSessions(ctx, session.Query{
			Filter: p.filter,
			Limit:  rawLimit,
			Cursor: cursor,
		})
		if err != nil {
			return nil, false, err
		}

		var survivors []*session.Session
		for _, s := range raw {
			if p.authors != nil {
				if _, ok := p.authors[s.UserID]; !ok {
					continue
				}
			}
			if !p.allVisibilities && !s.VisibleTo(viewerID, p.follows) {
				continue
			}
			survivors = append(survivors, s)
		}

		if len(survivors) == 0 {
			if !hasMoreRaw {
				return nil, false, nil
			}
			// Nothing survived this batch; resume after the last raw
			// candidate or the cursor would never advance.
			cursor = raw[len(raw)-1].ID
			continue
		}

		hasMore := hasMoreRaw
		if len(survivors) > pageSize {
			survivors = survivors[:pageSize]
			hasMore = true
		}
		return survivors, hasMore, nil
	}
}

// listSessions reads from the session store, retrying a transient failure
// once. All reads here are idempotent, so the retry is transparent.
func (a *Assembler) listSessions(ctx context.Context, q session.Query) ([]*session.Session, bool, error) {
	var records []*session.Session
	var hasMore bool

	op := func() error {
		var err error
		records, hasMore, err = a.stores.Sessions.List(ctx, q)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		a.logger.Error("session scan failed after retry",
			slog.String("error", err.Error()))
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, hasMore, nil
}

func (a *Assembler) observe(mode Mode, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveAssembly(string(mode), time.Since(start).Seconds())
}

// IsRetryable reports whether err represents a transient failure the caller
// may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
