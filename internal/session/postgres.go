package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pacelog/pacelog/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `id, user_id, activity_id, category_id, title, description,
	duration_seconds, start_time, created_at, updated_at, visibility,
	supported_by, support_count, comment_count`

// Create inserts a new session, assigning a UUID when no ID is set.
func (s *PostgresStore) Create(ctx context.Context, sess *Session) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "sessions", "insert")
	defer func() { end(err) }()

	if err := sess.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.Visibility == "" {
		sess.Visibility = VisibilityEveryone
	}
	sess.SupportCount = len(sess.SupportedBy)

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.UserID,
		nullString(sess.ActivityID), nullString(sess.CategoryID),
		sess.Title, sess.Description,
		sess.DurationSeconds, sess.StartTime, sess.CreatedAt, sess.UpdatedAt,
		string(sess.Visibility),
		pq.Array(sess.SupportedBy), sess.SupportCount, sess.CommentCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Update replaces mutable fields of an existing session.
func (s *PostgresStore) Update(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET title = $2, description = $3, activity_id = $4,
			duration_seconds = $5, start_time = $6, visibility = $7,
			updated_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Title, sess.Description, nullString(sess.ActivityID),
		sess.DurationSeconds, sess.StartTime, string(sess.Visibility),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetByID retrieves a session by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// List scans sessions matching q ordered by created_at DESC, id ASC.
// The cursor is resolved to its (created_at, id) position with a point lookup
// before the scan; an unknown cursor restarts from the top.
func (s *PostgresStore) List(ctx context.Context, q Query) (_ []*Session, _ bool, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "sessions", "query")
	defer func() { end(err) }()

	var args []any
	where := "TRUE"
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Filter.UserID != "" {
		where += " AND user_id = " + arg(q.Filter.UserID)
	}
	if q.Filter.Visibility != "" {
		where += " AND visibility = " + arg(string(q.Filter.Visibility))
	}
	if !q.Filter.CreatedAfter.IsZero() {
		where += " AND created_at >= " + arg(q.Filter.CreatedAfter)
	}
	if !q.Filter.CreatedBefore.IsZero() {
		where += " AND created_at < " + arg(q.Filter.CreatedBefore)
	}

	if q.Cursor != "" {
		cur, err := s.GetByID(ctx, q.Cursor)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			// Cursor record is gone; restart from the top.
		case err != nil:
			return nil, false, err
		default:
			where += fmt.Sprintf(" AND (created_at < %s OR (created_at = %s AND id > %s))",
				arg(cur.CreatedAt), arg(cur.CreatedAt), arg(cur.ID))
		}
	}

	limit := q.Limit
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + where +
		` ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		// Fetch one extra row to detect whether more records remain.
		query += " LIMIT " + arg(limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, false, err
		}
		results = append(results, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to scan sessions: %w", err)
	}

	hasMore := false
	if limit > 0 && len(results) > limit {
		results = results[:limit]
		hasMore = true
	}
	return results, hasMore, nil
}

// Support adds userID to the session's support set inside a transaction,
// recomputing support_count from the set so the counter can never drift.
func (s *PostgresStore) Support(ctx context.Context, sessionID, userID string) (*Session, error) {
	return s.mutateSupport(ctx, sessionID, userID, true)
}

// Unsupport removes userID from the session's support set inside a
// transaction, recomputing support_count from the set.
func (s *PostgresStore) Unsupport(ctx context.Context, sessionID, userID string) (*Session, error) {
	return s.mutateSupport(ctx, sessionID, userID, false)
}

func (s *PostgresStore) mutateSupport(ctx context.Context, sessionID, userID string, add bool) (_ *Session, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "sessions", "update")
	defer func() { end(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("failed to rollback support transaction",
				slog.String("error", err.Error()))
		}
	}()

	var supportedBy []string
	err = tx.QueryRowContext(ctx,
		`SELECT supported_by FROM sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(pq.Array(&supportedBy))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	next := supportedBy[:0]
	found := false
	for _, id := range supportedBy {
		if id == userID {
			found = true
			if !add {
				continue
			}
		}
		next = append(next, id)
	}
	if add && !found {
		next = append(next, userID)
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE sessions
		SET supported_by = $2, support_count = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+sessionColumns,
		sessionID, pq.Array(next), len(next), time.Now(),
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update support set: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit support mutation: %w", err)
	}
	return sess, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var activityID, categoryID sql.NullString
	var supportedBy []string
	err := row.Scan(
		&sess.ID, &sess.UserID, &activityID, &categoryID,
		&sess.Title, &sess.Description,
		&sess.DurationSeconds, &sess.StartTime, &sess.CreatedAt, &sess.UpdatedAt,
		&sess.Visibility,
		pq.Array(&supportedBy), &sess.SupportCount, &sess.CommentCount,
	)
	if err != nil {
		return nil, err
	}
	sess.ActivityID = activityID.String
	sess.CategoryID = categoryID.String
	sess.SupportedBy = supportedBy
	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
