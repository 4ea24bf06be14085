package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

// CreateAnchor inserts an anchor after validating its extent and owner node.
func (db *DB) CreateAnchor(ctx context.Context, a *models.Anchor) error {
	if a.AnchorID == "" || a.NodeID == "" {
		return fmt.Errorf("%w: anchor id and node id are required", apperr.ErrValidation)
	}
	if a.Extent != nil {
		if err := a.Extent.Validate(); err != nil {
			return err
		}
	}
	if _, err := db.GetNode(ctx, a.NodeID); err != nil {
		return fmt.Errorf("store: anchor owner %s: %w", a.NodeID, err)
	}
	ext, err := models.MarshalExtent(a.Extent)
	if err != nil {
		return err
	}
	var extCol any
	if a.Extent != nil {
		extCol = string(ext)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO anchors (anchor_id, node_id, extent) VALUES (?, ?, ?)`,
		a.AnchorID, a.NodeID, extCol)
	if err != nil {
		return fmt.Errorf("store: insert anchor: %w", err)
	}
	return nil
}

// GetAnchor returns a single anchor by id.
func (db *DB) GetAnchor(ctx context.Context, anchorID string) (*models.Anchor, error) {
	return scanAnchor(db.conn.QueryRowContext(ctx,
		`SELECT anchor_id, node_id, extent FROM anchors WHERE anchor_id = ?`, anchorID))
}

// GetAnchorsByNodeID returns every anchor on a node in insertion order.
func (db *DB) GetAnchorsByNodeID(ctx context.Context, nodeID string) ([]*models.Anchor, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT anchor_id, node_id, extent FROM anchors WHERE node_id = ? ORDER BY rowid`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: anchors by node: %w", err)
	}
	defer rows.Close()

	var out []*models.Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateExtent replaces an anchor's extent. Malformed extents are rejected
// before anything is persisted.
func (db *DB) UpdateExtent(ctx context.Context, anchorID string, extent models.Extent) error {
	if extent != nil {
		if err := extent.Validate(); err != nil {
			return err
		}
	}
	ext, err := models.MarshalExtent(extent)
	if err != nil {
		return err
	}
	var extCol any
	if extent != nil {
		extCol = string(ext)
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE anchors SET extent = ? WHERE anchor_id = ?`, extCol, anchorID)
	if err != nil {
		return fmt.Errorf("store: update extent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: anchor %s: %w", anchorID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteAnchors removes the given anchors. Unknown ids are ignored.
func (db *DB) DeleteAnchors(ctx context.Context, anchorIDs ...string) error {
	if len(anchorIDs) == 0 {
		return nil
	}
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM anchors WHERE anchor_id IN (`+placeholders(len(anchorIDs))+`)`,
		toAnySlice(anchorIDs)...)
	if err != nil {
		return fmt.Errorf("store: delete anchors: %w", err)
	}
	return nil
}

func scanAnchor(r rowScanner) (*models.Anchor, error) {
	var (
		a   models.Anchor
		ext sql.NullString
	)
	err := r.Scan(&a.AnchorID, &a.NodeID, &ext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan anchor: %w", err)
	}
	if ext.Valid {
		a.Extent, err = models.UnmarshalExtent([]byte(ext.String))
		if err != nil {
			return nil, err
		}
	}
	return &a, nil
}
