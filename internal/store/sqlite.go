package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/portal-inbox/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// SaveSnapshot replaces the cached inbox in one transaction. List order is
// kept through the position column.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	if len(snap.Notifications) > 0 {
		const query = `
			INSERT OR REPLACE INTO notifications (
				id, type, related_id,
				sender_id, sender_name, sender_avatar,
				title, message, read, created_at, position
			) VALUES (
				?, ?, ?,
				?, ?, ?,
				?, ?, ?, ?, ?
			)`

		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing insert statement: %w", err)
		}
		defer stmt.Close()

		for i, n := range snap.Notifications {
			var senderID, senderName, senderAvatar string
			if n.Sender != nil {
				senderID, senderName, senderAvatar = n.Sender.ID, n.Sender.Name, n.Sender.Avatar
			}
			_, err = stmt.ExecContext(ctx,
				n.ID, string(n.Type), n.RelatedID,
				senderID, senderName, senderAvatar,
				n.Title, n.Message, boolToInt(n.Read), n.CreatedAt.UTC(), i,
			)
			if err != nil {
				return fmt.Errorf("caching notification %s: %w", n.ID, err)
			}
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO inbox_meta (id, unread, total, saved_at)
		VALUES (1, ?, ?, ?)`,
		snap.Unread, snap.Total, savedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving inbox counters: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot returns the cached inbox in saved order.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, type, related_id, sender_id, sender_name, sender_avatar,
			title, message, read, created_at
		FROM notifications
		ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("querying cached notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return snap, err
		}
		snap.Notifications = append(snap.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterating cached notifications: %w", err)
	}

	var meta struct {
		Unread  int       `db:"unread"`
		Total   int       `db:"total"`
		SavedAt time.Time `db:"saved_at"`
	}
	err = s.db.GetContext(ctx, &meta, "SELECT unread, total, saved_at FROM inbox_meta WHERE id = 1")
	switch {
	case err == nil:
		snap.Unread = meta.Unread
		snap.Total = meta.Total
		snap.SavedAt = meta.SavedAt
	case errors.Is(err, sql.ErrNoRows):
		snap.Unread = model.CountUnread(snap.Notifications)
		snap.Total = len(snap.Notifications)
	default:
		return snap, fmt.Errorf("reading inbox counters: %w", err)
	}

	return snap, nil
}

// Clear removes every cached notification and counter.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM inbox_meta"); err != nil {
		return fmt.Errorf("clearing inbox counters: %w", err)
	}
	return nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n            model.Notification
		typ          string
		senderID     string
		senderName   string
		senderAvatar string
		readInt      int
		createdAt    time.Time
	)

	err := rows.Scan(
		&n.ID, &typ, &n.RelatedID,
		&senderID, &senderName, &senderAvatar,
		&n.Title, &n.Message, &readInt, &createdAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Type = model.ParseNotificationType(typ)
	n.Read = readInt != 0
	n.CreatedAt = createdAt
	if senderID != "" || senderName != "" {
		n.Sender = &model.Sender{ID: senderID, Name: senderName, Avatar: senderAvatar}
	}

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
