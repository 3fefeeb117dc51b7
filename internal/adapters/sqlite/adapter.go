// Package sqlite provides a SQLite-backed implementation of the repository port.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
)

var _ ports.PlaylistRepository = (*Adapter)(nil)

// Adapter implements the repository port for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query returns playlists in insertion order, filtered by language set and,
// when set, emotion.
func (a *Adapter) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	var (
		where []string
		args  []any
	)
	if len(q.Languages) > 0 {
		where = append(where, "language IN ("+placeholders(len(q.Languages))+")")
		for _, l := range q.Languages {
			args = append(args, l)
		}
	}
	if e := domain.NormalizeEmotion(q.Emotion); e != "" {
		where = append(where, "emotion = ?")
		args = append(args, e)
	}

	query := "SELECT id, name, language, emotion, created_at FROM playlists"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var (
		playlists []domain.Playlist
		ids       []string
	)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	if len(playlists) == 0 {
		return nil, nil
	}

	songs, err := loadSongs(ctx, a.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		playlists[i].Songs = songs[playlists[i].ID]
	}
	return playlists, nil
}

func (a *Adapter) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, name, language, emotion, created_at FROM playlists WHERE id = ?", id)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to load playlist: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Playlist{}, fmt.Errorf("failed to load playlist: %w", err)
		}
		return domain.Playlist{}, domain.ErrNotFound
	}
	playlist, err := scanPlaylist(rows)
	if err != nil {
		return domain.Playlist{}, err
	}
	rows.Close()

	songs, err := loadSongs(ctx, a.db, []string{playlist.ID})
	if err != nil {
		return domain.Playlist{}, err
	}
	playlist.Songs = songs[playlist.ID]
	return playlist, nil
}

func (a *Adapter) Save(ctx context.Context, p domain.Playlist) error {
	// 1. Start Transaction
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// 2. Upsert playlist and replace its songs
	if err := savePlaylist(ctx, tx, p); err != nil {
		return err
	}

	// 3. Commit Transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// ReplaceAll swaps the whole catalog inside one transaction.
func (a *Adapter) ReplaceAll(ctx context.Context, playlists []domain.Playlist) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM songs"); err != nil {
		return fmt.Errorf("failed to clear songs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM playlists"); err != nil {
		return fmt.Errorf("failed to clear playlists: %w", err)
	}
	for _, p := range playlists {
		if err := savePlaylist(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func savePlaylist(ctx context.Context, tx *sql.Tx, p domain.Playlist) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	queryPlaylist := `
		INSERT INTO playlists (id, name, language, emotion, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			language=excluded.language,
			emotion=excluded.emotion;
	`
	if _, err := tx.ExecContext(ctx, queryPlaylist,
		p.ID, p.Name, p.Language, domain.NormalizeEmotion(p.Emotion), created.UTC().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save playlist metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM songs WHERE playlist_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear old songs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO songs (playlist_id, position, title, artist, url, youtube_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare song insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range p.Songs {
		if _, err := stmt.ExecContext(ctx, p.ID, i, s.Title, s.Artist, s.URL, s.YouTubeID); err != nil {
			return fmt.Errorf("failed to save song %q: %w", s.Title, err)
		}
	}
	return nil
}

func scanPlaylist(rows *sql.Rows) (domain.Playlist, error) {
	var (
		p       domain.Playlist
		created int64
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Language, &p.Emotion, &created); err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to scan playlist: %w", err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.Songs = []domain.Song{}
	return p, nil
}

func loadSongs(ctx context.Context, q querier, ids []string) (map[string][]domain.Song, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `
		SELECT playlist_id, title, IFNULL(artist, ''), IFNULL(url, ''), IFNULL(youtube_id, '')
		FROM songs
		WHERE playlist_id IN (`+placeholders(len(ids))+`)
		ORDER BY playlist_id, position ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist songs: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Song, len(ids))
	for rows.Next() {
		var (
			playlistID string
			s          domain.Song
		)
		if err := rows.Scan(&playlistID, &s.Title, &s.Artist, &s.URL, &s.YouTubeID); err != nil {
			return nil, fmt.Errorf("failed to scan playlist song: %w", err)
		}
		out[playlistID] = append(out[playlistID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlist songs: %w", err)
	}
	for _, id := range ids {
		if out[id] == nil {
			out[id] = []domain.Song{}
		}
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		language TEXT NOT NULL,
		emotion TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_playlists_language_emotion ON playlists (language, emotion);

	CREATE TABLE IF NOT EXISTS songs (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		artist TEXT,
		url TEXT,
		youtube_id TEXT,
		PRIMARY KEY (playlist_id, position),
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// Databases created before songs carried YouTube IDs.
	if _, err := a.db.Exec("ALTER TABLE songs ADD COLUMN youtube_id TEXT"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}

