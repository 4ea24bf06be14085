package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

// CreateLink inserts a link after checking both endpoint anchors exist and
// that the recorded node ids match the anchors' owners.
func (db *DB) CreateLink(ctx context.Context, l *models.Link) error {
	if l.LinkID == "" || l.Anchor1ID == "" || l.Anchor2ID == "" {
		return fmt.Errorf("%w: link id and both anchor ids are required", apperr.ErrValidation)
	}
	a1, err := db.GetAnchor(ctx, l.Anchor1ID)
	if err != nil {
		return fmt.Errorf("store: link endpoint %s: %w", l.Anchor1ID, err)
	}
	a2, err := db.GetAnchor(ctx, l.Anchor2ID)
	if err != nil {
		return fmt.Errorf("store: link endpoint %s: %w", l.Anchor2ID, err)
	}
	if l.Anchor1NodeID != a1.NodeID || l.Anchor2NodeID != a2.NodeID {
		return fmt.Errorf("%w: link node ids do not match anchor owners", apperr.ErrValidation)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO links (link_id, anchor1_id, anchor1_node_id, anchor2_id, anchor2_node_id)
		VALUES (?, ?, ?, ?, ?)
	`, l.LinkID, l.Anchor1ID, l.Anchor1NodeID, l.Anchor2ID, l.Anchor2NodeID)
	if err != nil {
		return fmt.Errorf("store: insert link: %w", err)
	}
	return nil
}

// GetLink returns a single link by id.
func (db *DB) GetLink(ctx context.Context, linkID string) (*models.Link, error) {
	return scanLink(db.conn.QueryRowContext(ctx, selectLinkSQL+` WHERE link_id = ?`, linkID))
}

// GetLinksByAnchorID returns every link touching the anchor, oldest first.
func (db *DB) GetLinksByAnchorID(ctx context.Context, anchorID string) ([]*models.Link, error) {
	rows, err := db.conn.QueryContext(ctx,
		selectLinkSQL+` WHERE anchor1_id = ? OR anchor2_id = ? ORDER BY rowid`,
		anchorID, anchorID)
	if err != nil {
		return nil, fmt.Errorf("store: links by anchor: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// GetLinksByAnchorIDs returns every link touching any of the anchors,
// oldest first, without duplicates.
func (db *DB) GetLinksByAnchorIDs(ctx context.Context, anchorIDs []string) ([]*models.Link, error) {
	if len(anchorIDs) == 0 {
		return nil, nil
	}
	ph := placeholders(len(anchorIDs))
	args := toAnySlice(anchorIDs)
	rows, err := db.conn.QueryContext(ctx,
		selectLinkSQL+` WHERE anchor1_id IN (`+ph+`) OR anchor2_id IN (`+ph+`) ORDER BY rowid`,
		append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, fmt.Errorf("store: links by anchors: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// DeleteLinks removes the given links. Unknown ids are ignored.
func (db *DB) DeleteLinks(ctx context.Context, linkIDs ...string) error {
	if len(linkIDs) == 0 {
		return nil
	}
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM links WHERE link_id IN (`+placeholders(len(linkIDs))+`)`,
		toAnySlice(linkIDs)...)
	if err != nil {
		return fmt.Errorf("store: delete links: %w", err)
	}
	return nil
}

// DeleteLinksByNodeID removes every link with an endpoint on the node.
func (db *DB) DeleteLinksByNodeID(ctx context.Context, nodeID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM links WHERE anchor1_node_id = ? OR anchor2_node_id = ?`, nodeID, nodeID)
	if err != nil {
		return fmt.Errorf("store: delete links by node: %w", err)
	}
	return nil
}

const selectLinkSQL = `SELECT link_id, anchor1_id, anchor1_node_id, anchor2_id, anchor2_node_id FROM links`

func scanLink(r rowScanner) (*models.Link, error) {
	var l models.Link
	err := r.Scan(&l.LinkID, &l.Anchor1ID, &l.Anchor1NodeID, &l.Anchor2ID, &l.Anchor2NodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan link: %w", err)
	}
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]*models.Link, error) {
	var out []*models.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
