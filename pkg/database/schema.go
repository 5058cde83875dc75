package database

import "context"

// Schema statements are written in the dialect subset both SQLite and
// PostgreSQL accept. Genres are stored as a JSON-encoded array; pages of
// a chapter likewise.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS manga (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		total_chapters   INTEGER NOT NULL DEFAULT 0,
		genres           TEXT NOT NULL DEFAULT '[]',
		description      TEXT NOT NULL DEFAULT '',
		cover_url        TEXT NOT NULL DEFAULT '',
		publication_year INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		id           TEXT PRIMARY KEY,
		manga_id     TEXT NOT NULL REFERENCES manga(id) ON DELETE CASCADE,
		number       REAL NOT NULL,
		volume       INTEGER,
		title        TEXT NOT NULL DEFAULT '',
		language     TEXT NOT NULL DEFAULT 'en',
		source       TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMP,
		pages        TEXT NOT NULL DEFAULT '[]',
		external_url TEXT NOT NULL DEFAULT '',
		is_external  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chapters_manga ON chapters(manga_id, language, number)`,
	`CREATE TABLE IF NOT EXISTS library (
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		manga_id     TEXT NOT NULL REFERENCES manga(id) ON DELETE CASCADE,
		status       TEXT NOT NULL,
		added_at     TIMESTAMP NOT NULL,
		last_updated TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, manga_id)
	)`,
	`CREATE TABLE IF NOT EXISTS progress (
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		manga_id        TEXT NOT NULL REFERENCES manga(id) ON DELETE CASCADE,
		current_chapter INTEGER NOT NULL DEFAULT 0,
		last_read_at    TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, manga_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		manga_id   TEXT NOT NULL REFERENCES manga(id) ON DELETE CASCADE,
		value      INTEGER NOT NULL CHECK (value BETWEEN 1 AND 5),
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, manga_id)
	)`,
}

func (db *DB) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
