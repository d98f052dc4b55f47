package sqlstore

const schema = `
CREATE TABLE IF NOT EXISTS signups (
	email      TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	access_code   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS bets (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	request_id TEXT,
	game_id    TEXT NOT NULL,
	pick       TEXT NOT NULL,
	bet_type   TEXT NOT NULL DEFAULT '',
	price      REAL NOT NULL,
	units      REAL NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	placed_at  TEXT NOT NULL,
	settled_at TEXT,
	UNIQUE (username, request_id)
);
CREATE INDEX IF NOT EXISTS idx_bets_username ON bets(username, placed_at);
`
