// Package store provides SQLite-backed persistence for nodes, anchors, and links.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	node_id       TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	file_path     TEXT NOT NULL,
	path_key      TEXT NOT NULL,
	collaborators TEXT NOT NULL DEFAULT '[]',
	recipe_meta   TEXT,
	folder_meta   TEXT,
	date_created  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_nodes_path_key ON nodes(path_key);

CREATE TABLE IF NOT EXISTS anchors (
	anchor_id TEXT PRIMARY KEY,
	node_id   TEXT NOT NULL,
	extent    TEXT
);

CREATE INDEX IF NOT EXISTS idx_anchors_node ON anchors(node_id);

CREATE TABLE IF NOT EXISTS links (
	link_id         TEXT PRIMARY KEY,
	anchor1_id      TEXT NOT NULL,
	anchor1_node_id TEXT NOT NULL,
	anchor2_id      TEXT NOT NULL,
	anchor2_node_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_anchor1 ON links(anchor1_id);
CREATE INDEX IF NOT EXISTS idx_links_anchor2 ON links(anchor2_id);
CREATE INDEX IF NOT EXISTS idx_links_node1 ON links(anchor1_node_id);
CREATE INDEX IF NOT EXISTS idx_links_node2 ON links(anchor2_node_id);
`

// DB wraps a sql.DB with hypermedia store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// placeholders returns "?, ?, ..." with n slots for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
