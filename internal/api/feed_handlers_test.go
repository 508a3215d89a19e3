package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pacelog/pacelog/internal/activity"
	"github.com/pacelog/pacelog/internal/feed"
	"github.com/pacelog/pacelog/internal/group"
	"github.com/pacelog/pacelog/internal/middleware"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/socialgraph"
	"github.com/pacelog/pacelog/internal/user"
)

type apiFixture struct {
	sessions *session.InMemoryStore
	users    *user.InMemoryStore
	feed     *FeedHandlers
	stats    *StatsHandlers
	chart    *ChartHandlers
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := session.NewInMemoryStore()
	users := user.NewInMemoryStore()
	activities := activity.NewInMemoryStore()
	groups := group.NewInMemoryStore()
	adjacency := socialgraph.NewInMemoryAdjacencyStore()
	edges := socialgraph.NewInMemoryEdgeStore()
	graph := socialgraph.NewReader(adjacency, edges, users, logger)

	assembler := feed.NewAssembler(feed.Stores{
		Sessions:   sessions,
		Graph:      graph,
		Users:      users,
		Activities: activities,
		Groups:     groups,
	}, logger)

	users.Put(&user.User{ID: "viewer", Username: "viewer"})
	users.Put(&user.User{ID: "author", Username: "author"})
	if err := adjacency.Follow("viewer", "author"); err != nil {
		t.Fatalf("failed to seed follow: %v", err)
	}

	return &apiFixture{
		sessions: sessions,
		users:    users,
		feed:     NewFeedHandlers(assembler, logger),
		stats:    NewStatsHandlers(sessions, logger),
		chart:    NewChartHandlers(sessions, logger),
	}
}

func (f *apiFixture) addSession(t *testing.T, userID string, age time.Duration, durationSeconds int) *session.Session {
	t.Helper()
	s := &session.Session{
		UserID:          userID,
		ActivityID:      "act-1",
		Title:           "practice",
		DurationSeconds: durationSeconds,
		CreatedAt:       time.Now().Add(-age),
		Visibility:      session.VisibilityEveryone,
	}
	if err := f.sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.SetUserID(req.Context(), "viewer"))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	return resp
}

func TestGetFeed_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, httptest.NewRequest(http.MethodGet, "/feed", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error.Code != ErrCodeAuthFailed {
		t.Errorf("expected code %s, got %s", ErrCodeAuthFailed, resp.Error.Code)
	}
}

func TestGetFeed_DefaultFollowingMode(t *testing.T) {
	f := newAPIFixture(t)
	f.addSession(t, "author", time.Hour, 1800)

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, authedRequest(http.MethodGet, "/feed"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var page feed.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	if page.Items[0].Author == nil || page.Items[0].Author.ID != "author" {
		t.Errorf("expected annotated author, got %+v", page.Items[0].Author)
	}
}

func TestGetFeed_InvalidPageSize(t *testing.T) {
	f := newAPIFixture(t)

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, authedRequest(http.MethodGet, "/feed?page_size=abc"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetFeed_UnknownMode(t *testing.T) {
	f := newAPIFixture(t)

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, authedRequest(http.MethodGet, "/feed?mode=bogus"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected code %s, got %s", ErrCodeBadRequest, resp.Error.Code)
	}
}

func TestGetFeed_UserModeRequiresTarget(t *testing.T) {
	f := newAPIFixture(t)

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, authedRequest(http.MethodGet, "/feed?mode=user"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetFeed_OwnProfileSeesPrivate(t *testing.T) {
	f := newAPIFixture(t)
	s := &session.Session{
		UserID:          "viewer",
		ActivityID:      "act-1",
		Title:           "secret",
		DurationSeconds: 600,
		Visibility:      session.VisibilityPrivate,
	}
	if err := f.sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rr := httptest.NewRecorder()
	f.feed.GetFeed(rr, authedRequest(http.MethodGet, "/feed?mode=user&user_id=viewer"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var page feed.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected own private session visible, got %d items", len(page.Items))
	}
}
