package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"paper-filter/logger"
	"paper-filter/review"
	"paper-filter/types"
)

// Store is a review.DecisionStore backed by a local SQLite file
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ review.DecisionStore = (*Store)(nil)

// fixed width so decided_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SessionInfo summarizes the decisions stored for one session
type SessionInfo struct {
	SessionID   string
	Decided     int
	Kept        int
	LastDecided time.Time
}

// Open opens a SQLite database with WAL mode enabled and creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to open decision store", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to enable WAL", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to initialize schema", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS review_decisions (
	session_id TEXT NOT NULL,
	record_id INTEGER NOT NULL,
	title TEXT,
	decision TEXT NOT NULL CHECK (decision IN ('keep', 'reject')),
	decided_at TEXT NOT NULL,
	UNIQUE(session_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_review_decisions_session ON review_decisions(session_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveDecision upserts the decision for record; a re-decision overwrites.
func (s *Store) SaveDecision(ctx context.Context, sessionID string, record types.Record, decision review.Decision) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO review_decisions (session_id, record_id, title, decision, decided_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id, record_id) DO UPDATE SET
	title=excluded.title,
	decision=excluded.decision,
	decided_at=excluded.decided_at;
`, sessionID, record.ID, record.Title, string(decision), s.now().UTC().Format(timeLayout))
	if err != nil {
		return logger.NewAppErrorWithMetadata(logger.ErrorTypeStorage, "failed to save decision", err,
			map[string]interface{}{"session_id": sessionID, "record_id": record.ID})
	}
	return nil
}

// LoadDecisions returns every decision stored for sessionID
func (s *Store) LoadDecisions(ctx context.Context, sessionID string) (map[int]review.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, decision FROM review_decisions WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to load decisions", err)
	}
	defer rows.Close()

	decisions := make(map[int]review.Decision)
	for rows.Next() {
		var (
			id       int
			decision string
		)
		if err := rows.Scan(&id, &decision); err != nil {
			return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to scan decision", err)
		}
		decisions[id] = review.Decision(decision)
	}
	if err := rows.Err(); err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to load decisions", err)
	}
	return decisions, nil
}

// ClearDecisions deletes every decision stored for sessionID
func (s *Store) ClearDecisions(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM review_decisions WHERE session_id = ?`, sessionID); err != nil {
		return logger.NewAppError(logger.ErrorTypeStorage, "failed to clear decisions", err)
	}
	return nil
}

// Sessions lists stored sessions, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id,
	COUNT(*),
	SUM(CASE WHEN decision = 'keep' THEN 1 ELSE 0 END),
	MAX(decided_at)
FROM review_decisions
GROUP BY session_id
ORDER BY MAX(decided_at) DESC;
`)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var (
			info SessionInfo
			last string
		)
		if err := rows.Scan(&info.SessionID, &info.Decided, &info.Kept, &last); err != nil {
			return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to scan session", err)
		}
		info.LastDecided, _ = time.Parse(timeLayout, last)
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeStorage, "failed to list sessions", err)
	}
	return sessions, nil
}
