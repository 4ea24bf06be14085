// Package hyperservice coordinates the stores, the extent reconciler, the
// anchor projector, and the link graph builder behind the API surface.
package hyperservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/doc"
	"github.com/starford/gebo/internal/linkgraph"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/project"
	"github.com/starford/gebo/internal/reconcile"
	"github.com/starford/gebo/internal/refresh"
	"github.com/starford/gebo/internal/sse"
	"github.com/starford/gebo/internal/store"
)

// Service is the application service for hypermedia documents.
type Service struct {
	db      store.Store
	rec     *reconcile.Reconciler
	proj    *project.Projector
	graph   *linkgraph.Builder
	signals *refresh.Signals
	broker  *sse.Broker
}

// NewService creates a Service. signals and broker may be nil.
func NewService(db store.Store, signals *refresh.Signals, broker *sse.Broker) *Service {
	return &Service{
		db:      db,
		rec:     reconcile.New(db, db, db, signals),
		proj:    project.New(db, db),
		graph:   linkgraph.New(db, db, db),
		signals: signals,
		broker:  broker,
	}
}

// newID generates a type-prefixed random id, e.g. "text.4f9d...".
func newID(prefix string) string {
	return prefix + "." + uuid.NewString()
}

// RecipeInput carries the recipe-specific creation fields. Description,
// Ingredients, and Steps become separate child text nodes.
type RecipeInput struct {
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	Steps       string `json:"steps"`
	Serving     int    `json:"serving"`
	Cuisine     string `json:"cuisine"`
	Time        int    `json:"time"`
}

// CreateNodeRequest describes a node to create.
type CreateNodeRequest struct {
	Type     models.NodeType `json:"type"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	ParentID string          `json:"parentId,omitempty"`
	ViewType string          `json:"viewType,omitempty"`
	Recipe   *RecipeInput    `json:"recipe,omitempty"`
}

// CreateNode creates a node under the given parent (or at the root). Recipe
// nodes also get their description, ingredients, and steps child text nodes.
func (s *Service) CreateNode(ctx context.Context, req CreateNodeRequest) (*models.Node, error) {
	nodeID := newID(string(req.Type))
	path := []string{nodeID}
	if req.ParentID != "" {
		parent, err := s.db.GetNode(ctx, req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("hyperservice: parent %s: %w", req.ParentID, err)
		}
		path = append(append([]string{}, parent.FilePath.Path...), nodeID)
	}

	n := &models.Node{
		NodeID:   nodeID,
		Type:     req.Type,
		Title:    req.Title,
		Content:  req.Content,
		FilePath: models.NodePath{Path: path, Children: []string{}},
	}

	switch req.Type {
	case models.NodeTypeFolder:
		viewType := req.ViewType
		if viewType == "" {
			viewType = "grid"
		}
		n.Folder = &models.FolderMeta{ViewType: viewType}
	case models.NodeTypeRecipe:
		if req.Recipe == nil {
			return nil, fmt.Errorf("%w: recipe node requires recipe fields", apperr.ErrValidation)
		}
		n.Recipe = &models.RecipeMeta{
			DescriptionID: newID(string(models.NodeTypeText)),
			IngredientsID: newID(string(models.NodeTypeText)),
			StepsID:       newID(string(models.NodeTypeText)),
			Serving:       req.Recipe.Serving,
			Cuisine:       req.Recipe.Cuisine,
			Time:          req.Recipe.Time,
		}
	}

	if err := s.db.CreateNode(ctx, n); err != nil {
		return nil, err
	}

	if n.Recipe != nil {
		constituents := []struct{ id, title, content string }{
			{n.Recipe.DescriptionID, "Description", req.Recipe.Description},
			{n.Recipe.IngredientsID, "Ingredients", req.Recipe.Ingredients},
			{n.Recipe.StepsID, "Steps", req.Recipe.Steps},
		}
		for _, c := range constituents {
			child := &models.Node{
				NodeID:   c.id,
				Type:     models.NodeTypeText,
				Title:    c.title,
				Content:  c.content,
				FilePath: models.NodePath{Path: append(append([]string{}, path...), c.id), Children: []string{}},
			}
			if err := s.db.CreateNode(ctx, child); err != nil {
				return nil, fmt.Errorf("hyperservice: create recipe constituent: %w", err)
			}
		}
	}

	return s.db.GetNode(ctx, nodeID)
}

// GetNode returns one node.
func (s *Service) GetNode(ctx context.Context, nodeID string) (*models.Node, error) {
	return s.db.GetNode(ctx, nodeID)
}

// GetNodes returns the nodes with the given ids.
func (s *Service) GetNodes(ctx context.Context, nodeIDs []string) ([]*models.Node, error) {
	return s.db.GetNodes(ctx, nodeIDs)
}

// GetRoots returns the top-level nodes.
func (s *Service) GetRoots(ctx context.Context) ([]*models.Node, error) {
	return s.db.GetRoots(ctx)
}

// GetChildren returns a node's direct children.
func (s *Service) GetChildren(ctx context.Context, nodeID string) ([]*models.Node, error) {
	return s.db.GetChildren(ctx, nodeID)
}

// SearchNodes searches node titles.
func (s *Service) SearchNodes(ctx context.Context, query string) ([]*models.Node, error) {
	return s.db.SearchNodes(ctx, query)
}

// UpdateNode applies a property patch.
func (s *Service) UpdateNode(ctx context.Context, nodeID string, props []models.Property) (*models.Node, error) {
	n, err := s.db.UpdateNode(ctx, nodeID, props)
	if err != nil {
		return nil, err
	}
	s.publish(sse.KindContent, nodeID)
	return n, nil
}

// MoveNode re-roots a node under a new parent folder.
func (s *Service) MoveNode(ctx context.Context, nodeID, newParentID string) (*models.Node, error) {
	n, err := s.db.MoveNode(ctx, nodeID, newParentID)
	if err != nil {
		return nil, err
	}
	s.publish(sse.KindContent, nodeID)
	return n, nil
}

// DeleteNode removes a node with its subtree, anchors, and links.
func (s *Service) DeleteNode(ctx context.Context, nodeID string) error {
	if err := s.db.DeleteNode(ctx, nodeID); err != nil {
		return err
	}
	s.publish(sse.KindContent, nodeID)
	s.publish(sse.KindLinks, nodeID)
	return nil
}

// SaveContent reconciles a text node's anchors against the edited HTML and
// persists the result.
func (s *Service) SaveContent(ctx context.Context, nodeID, editedHTML string) error {
	n, err := s.db.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.Type != models.NodeTypeText {
		return fmt.Errorf("%w: cannot save rich content on %s node %s", apperr.ErrValidation, n.Type, nodeID)
	}
	d, err := doc.Parse(editedHTML)
	if err != nil {
		return err
	}
	err = s.rec.Save(ctx, nodeID, d)
	s.publish(sse.KindAnchors, nodeID)
	s.publish(sse.KindLinks, nodeID)
	s.publish(sse.KindContent, nodeID)
	return err
}

// RenderContent loads a text node and paints its stored anchors back in as
// link marks, returning the decorated HTML.
func (s *Service) RenderContent(ctx context.Context, nodeID string) (string, error) {
	n, err := s.db.GetNode(ctx, nodeID)
	if err != nil {
		return "", err
	}
	d, err := doc.Parse(n.Content)
	if err != nil {
		return "", err
	}
	if err := s.proj.Apply(ctx, d, nodeID); err != nil {
		return "", err
	}
	return d.HTML(), nil
}

// LinkMenu assembles the anchorId -> entry map for the node's link menu.
// Recipe nodes merge the maps of their constituent text nodes.
func (s *Service) LinkMenu(ctx context.Context, nodeID string) (map[string]models.AnchorLinkEntry, error) {
	n, err := s.db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return s.graph.BuildComposite(ctx, n, nil)
}

// GraphView derives the node-to-node graph around one node.
func (s *Service) GraphView(ctx context.Context, nodeID string) (*linkgraph.GraphView, error) {
	n, err := s.db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return s.graph.Graph(ctx, n, nil)
}

// CreateAnchor stores a new anchor over the given extent.
func (s *Service) CreateAnchor(ctx context.Context, nodeID string, extent models.Extent) (*models.Anchor, error) {
	a := &models.Anchor{AnchorID: newID("anchor"), NodeID: nodeID, Extent: extent}
	if err := s.db.CreateAnchor(ctx, a); err != nil {
		return nil, err
	}
	s.publish(sse.KindAnchors, nodeID)
	return a, nil
}

// GetAnchor returns one anchor.
func (s *Service) GetAnchor(ctx context.Context, anchorID string) (*models.Anchor, error) {
	return s.db.GetAnchor(ctx, anchorID)
}

// GetAnchorsByNodeID returns every anchor on a node.
func (s *Service) GetAnchorsByNodeID(ctx context.Context, nodeID string) ([]*models.Anchor, error) {
	return s.db.GetAnchorsByNodeID(ctx, nodeID)
}

// DeleteAnchors removes anchors and every link touching them, links first.
func (s *Service) DeleteAnchors(ctx context.Context, anchorIDs ...string) error {
	links, err := s.db.GetLinksByAnchorIDs(ctx, anchorIDs)
	if err != nil {
		return err
	}
	linkIDs := make([]string, len(links))
	for i, l := range links {
		linkIDs[i] = l.LinkID
	}
	if err := s.db.DeleteLinks(ctx, linkIDs...); err != nil {
		return err
	}
	if err := s.db.DeleteAnchors(ctx, anchorIDs...); err != nil {
		return err
	}
	s.publish(sse.KindAnchors, "")
	s.publish(sse.KindLinks, "")
	return nil
}

// CompleteLink connects two existing anchors with a new link.
func (s *Service) CompleteLink(ctx context.Context, anchor1ID, anchor2ID string) (*models.Link, error) {
	a1, err := s.db.GetAnchor(ctx, anchor1ID)
	if err != nil {
		return nil, err
	}
	a2, err := s.db.GetAnchor(ctx, anchor2ID)
	if err != nil {
		return nil, err
	}
	l := &models.Link{
		LinkID:        newID("link"),
		Anchor1ID:     a1.AnchorID,
		Anchor1NodeID: a1.NodeID,
		Anchor2ID:     a2.AnchorID,
		Anchor2NodeID: a2.NodeID,
	}
	if err := s.db.CreateLink(ctx, l); err != nil {
		return nil, err
	}
	s.publish(sse.KindLinks, a1.NodeID)
	return l, nil
}

// LinkSelection creates anchors over two extents and links them in one step.
func (s *Service) LinkSelection(ctx context.Context, node1ID string, extent1 models.Extent, node2ID string, extent2 models.Extent) (*models.Link, error) {
	a1, err := s.CreateAnchor(ctx, node1ID, extent1)
	if err != nil {
		return nil, err
	}
	a2, err := s.CreateAnchor(ctx, node2ID, extent2)
	if err != nil {
		return nil, err
	}
	return s.CompleteLink(ctx, a1.AnchorID, a2.AnchorID)
}

// GetLink returns one link.
func (s *Service) GetLink(ctx context.Context, linkID string) (*models.Link, error) {
	return s.db.GetLink(ctx, linkID)
}

// GetLinksByAnchorID returns every link touching an anchor, oldest first.
func (s *Service) GetLinksByAnchorID(ctx context.Context, anchorID string) ([]*models.Link, error) {
	return s.db.GetLinksByAnchorID(ctx, anchorID)
}

// DeleteLinks removes links by id.
func (s *Service) DeleteLinks(ctx context.Context, linkIDs ...string) error {
	if err := s.db.DeleteLinks(ctx, linkIDs...); err != nil {
		return err
	}
	s.publish(sse.KindLinks, "")
	return nil
}

func (s *Service) publish(kind, nodeID string) {
	if s.broker != nil {
		s.broker.PublishRefresh(kind, nodeID)
	}
}
