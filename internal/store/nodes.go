package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

// pathKey materializes a file path for prefix queries ("a/b/c").
func pathKey(p models.NodePath) string {
	return strings.Join(p.Path, "/")
}

// CreateNode inserts a node and registers it in its parent's child list.
func (db *DB) CreateNode(ctx context.Context, n *models.Node) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if n.DateCreated.IsZero() {
		n.DateCreated = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM nodes WHERE node_id = ?`, n.NodeID).Scan(&exists); err != nil {
		return fmt.Errorf("store: check node: %w", err)
	}
	if exists > 0 {
		return apperr.ErrAlreadyExists
	}

	row, err := nodeToRow(n)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (node_id, type, title, content, file_path, path_key, collaborators, recipe_meta, folder_meta, date_created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row...)
	if err != nil {
		return fmt.Errorf("store: insert node: %w", err)
	}

	if parent := n.Parent(); parent != "" {
		if err := addChild(ctx, tx, parent, n.NodeID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetNode returns a single node by id.
func (db *DB) GetNode(ctx context.Context, nodeID string) (*models.Node, error) {
	return scanNode(db.conn.QueryRowContext(ctx, selectNodeSQL+` WHERE node_id = ?`, nodeID))
}

// GetNodes returns the nodes with the given ids. Missing ids are skipped.
func (db *DB) GetNodes(ctx context.Context, nodeIDs []string) ([]*models.Node, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	query := selectNodeSQL + ` WHERE node_id IN (` + placeholders(len(nodeIDs)) + `)`
	rows, err := db.conn.QueryContext(ctx, query, toAnySlice(nodeIDs)...)
	if err != nil {
		return nil, fmt.Errorf("store: get nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetRoots returns every top-level node (file path of length one).
func (db *DB) GetRoots(ctx context.Context) ([]*models.Node, error) {
	rows, err := db.conn.QueryContext(ctx, selectNodeSQL+` WHERE path_key = node_id ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("store: get roots: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetChildren returns the direct children of a node in child-list order.
func (db *DB) GetChildren(ctx context.Context, nodeID string) ([]*models.Node, error) {
	parent, err := db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	children, err := db.GetNodes(ctx, parent.FilePath.Children)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Node, len(children))
	for _, c := range children {
		byID[c.NodeID] = c
	}
	ordered := make([]*models.Node, 0, len(children))
	for _, id := range parent.FilePath.Children {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// SearchNodes returns nodes whose title contains the query, case-insensitively.
func (db *DB) SearchNodes(ctx context.Context, query string) ([]*models.Node, error) {
	rows, err := db.conn.QueryContext(ctx, selectNodeSQL+` WHERE title LIKE ? ORDER BY title`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("store: search nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// UpdateNode applies a partial property patch and returns the updated node.
func (db *DB) UpdateNode(ctx context.Context, nodeID string, props []models.Property) (*models.Node, error) {
	n, err := db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := applyProperties(n, props); err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if err := db.writeNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MoveNode re-roots a node (and its whole subtree) under a new parent folder.
func (db *DB) MoveNode(ctx context.Context, nodeID, newParentID string) (*models.Node, error) {
	n, err := db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	parent, err := db.GetNode(ctx, newParentID)
	if err != nil {
		return nil, err
	}
	for _, ancestor := range parent.FilePath.Path {
		if ancestor == nodeID {
			return nil, fmt.Errorf("%w: cannot move %s into its own subtree", apperr.ErrValidation, nodeID)
		}
	}

	oldKey := pathKey(n.FilePath)
	newPath := append(append([]string{}, parent.FilePath.Path...), nodeID)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if old := n.Parent(); old != "" {
		if err := removeChild(ctx, tx, old, nodeID); err != nil {
			return nil, err
		}
	}
	if err := addChild(ctx, tx, newParentID, nodeID); err != nil {
		return nil, err
	}

	subtree, err := subtreeNodes(ctx, tx, oldKey)
	if err != nil {
		return nil, err
	}
	for _, sub := range subtree {
		rebased := append(append([]string{}, newPath...), sub.FilePath.Path[len(n.FilePath.Path):]...)
		sub.FilePath.Path = rebased
		fp, err := json.Marshal(sub.FilePath)
		if err != nil {
			return nil, fmt.Errorf("store: encode file path: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE nodes SET file_path = ?, path_key = ? WHERE node_id = ?`,
			string(fp), pathKey(sub.FilePath), sub.NodeID); err != nil {
			return nil, fmt.Errorf("store: rebase node %s: %w", sub.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit move: %w", err)
	}
	return db.GetNode(ctx, nodeID)
}

// DeleteNode removes a node, all its descendants, and every anchor and link
// attached to any node in the deleted subtree.
func (db *DB) DeleteNode(ctx context.Context, nodeID string) error {
	n, err := db.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	subtree, err := subtreeNodes(ctx, tx, pathKey(n.FilePath))
	if err != nil {
		return err
	}
	ids := make([]string, len(subtree))
	for i, sub := range subtree {
		ids[i] = sub.NodeID
	}

	args := toAnySlice(ids)
	ph := placeholders(len(ids))
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE anchor1_node_id IN (`+ph+`) OR anchor2_node_id IN (`+ph+`)`,
		append(append([]any{}, args...), args...)...); err != nil {
		return fmt.Errorf("store: delete subtree links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM anchors WHERE node_id IN (`+ph+`)`, args...); err != nil {
		return fmt.Errorf("store: delete subtree anchors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE node_id IN (`+ph+`)`, args...); err != nil {
		return fmt.Errorf("store: delete subtree nodes: %w", err)
	}

	if parent := n.Parent(); parent != "" {
		if err := removeChild(ctx, tx, parent, nodeID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}

	return tx.Commit()
}

const selectNodeSQL = `SELECT node_id, type, title, content, file_path, collaborators, recipe_meta, folder_meta, date_created FROM nodes`

func nodeToRow(n *models.Node) ([]any, error) {
	fp, err := json.Marshal(n.FilePath)
	if err != nil {
		return nil, fmt.Errorf("store: encode file path: %w", err)
	}
	collab, err := json.Marshal(emptyIfNil(n.Collaborators))
	if err != nil {
		return nil, fmt.Errorf("store: encode collaborators: %w", err)
	}
	var recipe, folder any
	if n.Recipe != nil {
		b, err := json.Marshal(n.Recipe)
		if err != nil {
			return nil, fmt.Errorf("store: encode recipe meta: %w", err)
		}
		recipe = string(b)
	}
	if n.Folder != nil {
		b, err := json.Marshal(n.Folder)
		if err != nil {
			return nil, fmt.Errorf("store: encode folder meta: %w", err)
		}
		folder = string(b)
	}
	return []any{
		n.NodeID, string(n.Type), n.Title, n.Content,
		string(fp), pathKey(n.FilePath), string(collab), recipe, folder, n.DateCreated,
	}, nil
}

// writeNode persists all mutable columns of an existing node.
func (db *DB) writeNode(ctx context.Context, n *models.Node) error {
	row, err := nodeToRow(n)
	if err != nil {
		return err
	}
	// Same column order as the insert, keyed by node_id.
	_, err = db.conn.ExecContext(ctx, `
		UPDATE nodes SET type = ?, title = ?, content = ?, file_path = ?, path_key = ?,
			collaborators = ?, recipe_meta = ?, folder_meta = ?, date_created = ?
		WHERE node_id = ?
	`, append(row[1:], n.NodeID)...)
	if err != nil {
		return fmt.Errorf("store: update node %s: %w", n.NodeID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (*models.Node, error) {
	var (
		n              models.Node
		typ, fp        string
		collab         string
		recipe, folder sql.NullString
	)
	err := r.Scan(&n.NodeID, &typ, &n.Title, &n.Content, &fp, &collab, &recipe, &folder, &n.DateCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan node: %w", err)
	}
	n.Type = models.NodeType(typ)
	if err := json.Unmarshal([]byte(fp), &n.FilePath); err != nil {
		return nil, fmt.Errorf("store: decode file path: %w", err)
	}
	if err := json.Unmarshal([]byte(collab), &n.Collaborators); err != nil {
		return nil, fmt.Errorf("store: decode collaborators: %w", err)
	}
	if recipe.Valid {
		n.Recipe = &models.RecipeMeta{}
		if err := json.Unmarshal([]byte(recipe.String), n.Recipe); err != nil {
			return nil, fmt.Errorf("store: decode recipe meta: %w", err)
		}
	}
	if folder.Valid {
		n.Folder = &models.FolderMeta{}
		if err := json.Unmarshal([]byte(folder.String), n.Folder); err != nil {
			return nil, fmt.Errorf("store: decode folder meta: %w", err)
		}
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*models.Node, error) {
	var out []*models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// subtreeNodes returns the node at key plus every descendant, shallowest first.
func subtreeNodes(ctx context.Context, tx *sql.Tx, key string) ([]*models.Node, error) {
	rows, err := tx.QueryContext(ctx,
		selectNodeSQL+` WHERE path_key = ? OR path_key LIKE ? ORDER BY length(path_key)`,
		key, key+"/%")
	if err != nil {
		return nil, fmt.Errorf("store: subtree query: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func addChild(ctx context.Context, tx *sql.Tx, parentID, childID string) error {
	return mutateChildren(ctx, tx, parentID, func(children []string) []string {
		for _, id := range children {
			if id == childID {
				return children
			}
		}
		return append(children, childID)
	})
}

func removeChild(ctx context.Context, tx *sql.Tx, parentID, childID string) error {
	return mutateChildren(ctx, tx, parentID, func(children []string) []string {
		out := children[:0]
		for _, id := range children {
			if id != childID {
				out = append(out, id)
			}
		}
		return out
	})
}

func mutateChildren(ctx context.Context, tx *sql.Tx, parentID string, fn func([]string) []string) error {
	var fp string
	err := tx.QueryRowContext(ctx, `SELECT file_path FROM nodes WHERE node_id = ?`, parentID).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: parent %s: %w", parentID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: load parent %s: %w", parentID, err)
	}
	var path models.NodePath
	if err := json.Unmarshal([]byte(fp), &path); err != nil {
		return fmt.Errorf("store: decode parent path: %w", err)
	}
	path.Children = fn(path.Children)
	updated, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("store: encode parent path: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET file_path = ? WHERE node_id = ?`, string(updated), parentID); err != nil {
		return fmt.Errorf("store: update parent children: %w", err)
	}
	return nil
}

// applyProperties mutates n according to a partial property patch.
func applyProperties(n *models.Node, props []models.Property) error {
	for _, p := range props {
		switch p.Field {
		case models.FieldTitle:
			s, err := stringValue(p)
			if err != nil {
				return err
			}
			n.Title = s
		case models.FieldContent:
			s, err := stringValue(p)
			if err != nil {
				return err
			}
			n.Content = s
		case models.FieldCollaborators:
			list, err := stringListValue(p)
			if err != nil {
				return err
			}
			n.Collaborators = list
		case models.FieldViewType:
			if n.Folder == nil {
				return fmt.Errorf("%w: viewType on non-folder node", apperr.ErrValidation)
			}
			s, err := stringValue(p)
			if err != nil {
				return err
			}
			n.Folder.ViewType = s
		case models.FieldCuisine:
			if n.Recipe == nil {
				return fmt.Errorf("%w: cuisine on non-recipe node", apperr.ErrValidation)
			}
			s, err := stringValue(p)
			if err != nil {
				return err
			}
			n.Recipe.Cuisine = s
		case models.FieldServing:
			if n.Recipe == nil {
				return fmt.Errorf("%w: serving on non-recipe node", apperr.ErrValidation)
			}
			v, err := intValue(p)
			if err != nil {
				return err
			}
			n.Recipe.Serving = v
		case models.FieldTime:
			if n.Recipe == nil {
				return fmt.Errorf("%w: time on non-recipe node", apperr.ErrValidation)
			}
			v, err := intValue(p)
			if err != nil {
				return err
			}
			n.Recipe.Time = v
		default:
			return fmt.Errorf("%w: unknown property %q", apperr.ErrValidation, p.Field)
		}
	}
	return nil
}

func stringValue(p models.Property) (string, error) {
	s, ok := p.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: property %q wants a string, got %T", apperr.ErrValidation, p.Field, p.Value)
	}
	return s, nil
}

func intValue(p models.Property) (int, error) {
	switch v := p.Value.(type) {
	case int:
		return v, nil
	case float64: // JSON numbers decode as float64
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: property %q wants a number, got %T", apperr.ErrValidation, p.Field, p.Value)
	}
}

func stringListValue(p models.Property) ([]string, error) {
	switch v := p.Value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: property %q wants strings, got %T", apperr.ErrValidation, p.Field, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: property %q wants a string list, got %T", apperr.ErrValidation, p.Field, p.Value)
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
