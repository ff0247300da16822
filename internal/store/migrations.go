package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL DEFAULT 'other',
	related_id    TEXT NOT NULL DEFAULT '',
	sender_id     TEXT NOT NULL DEFAULT '',
	sender_name   TEXT NOT NULL DEFAULT '',
	sender_avatar TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	read          INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at    DATETIME NOT NULL,
	position      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notifications_position ON notifications(position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS inbox_meta (
	id       INTEGER PRIMARY KEY CHECK(id = 1),
	unread   INTEGER NOT NULL DEFAULT 0,
	total    INTEGER NOT NULL DEFAULT 0,
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
