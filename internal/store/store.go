package store

import (
	"context"

	"github.com/starford/gebo/internal/models"
)

// NodeStore persists hypermedia documents.
type NodeStore interface {
	CreateNode(ctx context.Context, n *models.Node) error
	GetNode(ctx context.Context, nodeID string) (*models.Node, error)
	GetNodes(ctx context.Context, nodeIDs []string) ([]*models.Node, error)
	GetRoots(ctx context.Context) ([]*models.Node, error)
	GetChildren(ctx context.Context, nodeID string) ([]*models.Node, error)
	SearchNodes(ctx context.Context, query string) ([]*models.Node, error)
	UpdateNode(ctx context.Context, nodeID string, props []models.Property) (*models.Node, error)
	MoveNode(ctx context.Context, nodeID, newParentID string) (*models.Node, error)
	DeleteNode(ctx context.Context, nodeID string) error
}

// AnchorStore persists anchors.
type AnchorStore interface {
	CreateAnchor(ctx context.Context, a *models.Anchor) error
	GetAnchor(ctx context.Context, anchorID string) (*models.Anchor, error)
	GetAnchorsByNodeID(ctx context.Context, nodeID string) ([]*models.Anchor, error)
	UpdateExtent(ctx context.Context, anchorID string, extent models.Extent) error
	DeleteAnchors(ctx context.Context, anchorIDs ...string) error
}

// LinkStore persists links between anchors. Queries return links in
// store-insertion order; "first link found" semantics depend on that.
type LinkStore interface {
	CreateLink(ctx context.Context, l *models.Link) error
	GetLink(ctx context.Context, linkID string) (*models.Link, error)
	GetLinksByAnchorID(ctx context.Context, anchorID string) ([]*models.Link, error)
	GetLinksByAnchorIDs(ctx context.Context, anchorIDs []string) ([]*models.Link, error)
	DeleteLinks(ctx context.Context, linkIDs ...string) error
	DeleteLinksByNodeID(ctx context.Context, nodeID string) error
}

// Store is the full persistence surface. Consumers should depend on the
// narrow interfaces above rather than the concrete *DB type.
type Store interface {
	NodeStore
	AnchorStore
	LinkStore
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
