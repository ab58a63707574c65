// Package store persists harvested notices to SQLite. Saving is idempotent
// per site: titles already present among the site's most recent rows are
// skipped instead of re-inserted.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/daehakro/noticeboard/noticeboard"
)

// recentWindow is how many of a site's latest rows are consulted when
// filtering out already-saved titles.
const recentWindow = 200

const schema = `
CREATE TABLE IF NOT EXISTS university_notices (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	university_name TEXT NOT NULL,
	title           TEXT NOT NULL,
	link            TEXT,
	notice_date     TEXT,
	crawled_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notices_university
	ON university_notices (university_name, id DESC);
`

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the SQLite database at path and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare store schema: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the notices for siteName and returns how many rows were
// actually inserted after filtering titles already present in the site's
// recent window.
func (s *Store) Save(ctx context.Context, notices []noticeboard.Notice, siteName string) (int, error) {
	if len(notices) == 0 {
		return 0, nil
	}

	recent, err := s.recentTitles(ctx, siteName)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin save for %s: %w", siteName, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO university_notices (university_name, title, link, notice_date, crawled_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert for %s: %w", siteName, err)
	}
	defer stmt.Close()

	crawledAt := time.Now().Format(time.RFC3339)
	saved := 0
	for _, n := range notices {
		if n.Title == "" {
			continue
		}
		if _, seen := recent[n.Title]; seen {
			continue
		}
		if _, err := stmt.ExecContext(ctx, siteName, n.Title, nullable(n.Link), nullable(n.Date), crawledAt); err != nil {
			return 0, fmt.Errorf("failed to insert notice for %s: %w", siteName, err)
		}
		recent[n.Title] = struct{}{}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit save for %s: %w", siteName, err)
	}
	if saved > 0 {
		s.log.Info("notices saved", "site", siteName, "saved", saved, "skipped", len(notices)-saved)
	} else {
		s.log.Info("no new notices", "site", siteName)
	}
	return saved, nil
}

func (s *Store) recentTitles(ctx context.Context, siteName string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM university_notices
		WHERE university_name = ?
		ORDER BY id DESC LIMIT ?`, siteName, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent titles for %s: %w", siteName, err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan title for %s: %w", siteName, err)
		}
		titles[t] = struct{}{}
	}
	return titles, rows.Err()
}

// Count returns the number of stored notices for siteName, or for all sites
// when siteName is empty.
func (s *Store) Count(ctx context.Context, siteName string) (int, error) {
	var (
		n   int
		err error
	)
	if siteName == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM university_notices`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM university_notices WHERE university_name = ?`, siteName).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count notices: %w", err)
	}
	return n, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
