// Package store archives conversation turns to SQLite so past sessions
// stay searchable after the session file is trimmed or cleared.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"qwencli/internal/history"
	"qwencli/internal/logging"
)

// Archive is the SQLite-backed conversation archive.
type Archive struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Entry is one archived turn.
type Entry struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	ToolName  string
	CreatedAt time.Time
}

// Open initializes the archive database at the given path.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("archive open at %s", path)
	return a, nil
}

func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_name TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// AppendTurn archives one turn under a session.
func (a *Archive) AppendTurn(sessionID string, t history.Turn) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(
		"INSERT INTO turns (session_id, role, content, tool_name) VALUES (?, ?, ?, ?)",
		sessionID, t.Role, t.Content, t.ToolName,
	)
	if err != nil {
		return fmt.Errorf("archive turn: %w", err)
	}
	return nil
}

// AppendTurns archives a batch in one transaction.
func (a *Archive) AppendTurns(sessionID string, turns []history.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO turns (session_id, role, content, tool_name) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("archive batch: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		if _, err := stmt.Exec(sessionID, t.Role, t.Content, t.ToolName); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}

	logging.StoreDebug("archived %d turns for session %s", len(turns), sessionID)
	return nil
}

// Recall searches archived content with a case-insensitive substring
// match, newest first, capped at limit.
func (a *Archive) Recall(query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	rows, err := a.db.Query(`
		SELECT id, session_id, role, content, tool_name, created_at
		FROM turns
		WHERE content LIKE ? ESCAPE '\'
		ORDER BY id DESC
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("recall query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.ToolName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("recall scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SessionCount returns the number of distinct archived sessions.
func (a *Archive) SessionCount() (int, error) {
	var n int
	err := a.db.QueryRow("SELECT COUNT(DISTINCT session_id) FROM turns").Scan(&n)
	return n, err
}

// TurnCount returns the total number of archived turns.
func (a *Archive) TurnCount() (int, error) {
	var n int
	err := a.db.QueryRow("SELECT COUNT(*) FROM turns").Scan(&n)
	return n, err
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
