package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id TEXT PRIMARY KEY,
	match_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	kind TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS journal_entries_match_idx
	ON journal_entries (match_id, id);
`

// PostgresStore persists entries in PostgreSQL. The ULID primary key keeps
// rows ordered by recording time without a separate sequence.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal_entries (id, match_id, turn, kind, actor_id, body, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx,
			entry.ID, entry.MatchID, entry.Turn, string(entry.Kind),
			entry.ActorID, entry.Text, entry.Time); err != nil {
			return fmt.Errorf("insert journal entry %s: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Match(ctx context.Context, matchID string, limit int) ([]Entry, error) {
	// When limited, take the newest rows and restore chronological order
	// below, matching the other stores.
	query := `
		SELECT id, match_id, turn, kind, actor_id, body, recorded_at
		FROM journal_entries
		WHERE match_id = $1
		ORDER BY id`
	args := []any{matchID}
	if limit > 0 {
		query += ` DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var kind string
		if err := rows.Scan(&entry.ID, &entry.MatchID, &entry.Turn, &kind,
			&entry.ActorID, &entry.Text, &entry.Time); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Kind = Kind(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	if limit > 0 {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries, nil
}

func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}
