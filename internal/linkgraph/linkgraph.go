// Package linkgraph assembles the per-node view of anchors and their
// connected opposing nodes: the link menu map and the graph visualization
// derivation.
package linkgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/store"
)

// Builder resolves anchors and links into link-menu entries and graph views.
type Builder struct {
	anchors store.AnchorStore
	links   store.LinkStore
	nodes   store.NodeStore
}

// New creates a Builder.
func New(anchors store.AnchorStore, links store.LinkStore, nodes store.NodeStore) *Builder {
	return &Builder{anchors: anchors, links: links, nodes: nodes}
}

// Build produces the anchorId -> entry map for one node. nodeMap is a fast
// path for resolving opposing nodes; anything absent is fetched from the
// store. An opposing node that no longer exists is skipped, not fatal.
func (b *Builder) Build(ctx context.Context, node *models.Node, nodeMap models.NodeMap) (map[string]models.AnchorLinkEntry, error) {
	anchors, err := b.anchors.GetAnchorsByNodeID(ctx, node.NodeID)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: fetch anchors for %s: %w", node.NodeID, err)
	}

	entries := make(map[string]models.AnchorLinkEntry, len(anchors))
	for _, anchor := range anchors {
		links, err := b.links.GetLinksByAnchorID(ctx, anchor.AnchorID)
		if err != nil {
			return nil, fmt.Errorf("linkgraph: fetch links for %s: %w", anchor.AnchorID, err)
		}
		entry := models.AnchorLinkEntry{Anchor: anchor}
		for _, l := range links {
			oppAnchorID, oppNodeID := l.Opposite(anchor.AnchorID)

			var oppAnchor *models.Anchor
			if oppAnchorID == anchor.AnchorID {
				// Degenerate link referencing one anchor twice opposes itself.
				oppAnchor = anchor
			} else {
				oppAnchor, err = b.anchors.GetAnchor(ctx, oppAnchorID)
				if err != nil {
					if errors.Is(err, apperr.ErrNotFound) {
						slog.Warn("linkgraph: opposing anchor missing",
							slog.String("link_id", l.LinkID), slog.String("anchor_id", oppAnchorID))
						continue
					}
					return nil, fmt.Errorf("linkgraph: fetch opposing anchor %s: %w", oppAnchorID, err)
				}
			}

			oppNode, err := b.resolveNode(ctx, oppNodeID, node, nodeMap)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					slog.Warn("linkgraph: opposing node missing",
						slog.String("link_id", l.LinkID), slog.String("node_id", oppNodeID))
					continue
				}
				return nil, fmt.Errorf("linkgraph: fetch opposing node %s: %w", oppNodeID, err)
			}

			entry.Links = append(entry.Links, models.LinkEndpoint{
				Link:      *l,
				OppNode:   oppNode,
				OppAnchor: oppAnchor,
			})
		}
		entries[anchor.AnchorID] = entry
	}
	return entries, nil
}

// BuildComposite builds the merged entry map for a composite node. A recipe's
// anchors physically live on its description, ingredients, and steps child
// text nodes, so the builder runs once per constituent and the maps merge.
// Non-composite nodes get a plain Build.
func (b *Builder) BuildComposite(ctx context.Context, node *models.Node, nodeMap models.NodeMap) (map[string]models.AnchorLinkEntry, error) {
	if node.Type != models.NodeTypeRecipe || node.Recipe == nil {
		return b.Build(ctx, node, nodeMap)
	}
	merged := make(map[string]models.AnchorLinkEntry)
	for _, subID := range []string{node.Recipe.DescriptionID, node.Recipe.IngredientsID, node.Recipe.StepsID} {
		if subID == "" {
			continue
		}
		sub, err := b.resolveNode(ctx, subID, node, nodeMap)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				slog.Warn("linkgraph: recipe constituent missing",
					slog.String("recipe_id", node.NodeID), slog.String("node_id", subID))
				continue
			}
			return nil, err
		}
		part, err := b.Build(ctx, sub, nodeMap)
		if err != nil {
			return nil, err
		}
		for id, entry := range part {
			merged[id] = entry
		}
	}
	return merged, nil
}

// GraphNode is a node in the visualization.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// GraphEdge is one edge per link, oriented from the current node.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphView is the node-to-node derivation consumed by the graph renderer.
type GraphView struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph derives the visualization for one node: the node itself plus every
// distinct opposing node, one edge per link. Self-loop links (both endpoints
// on the node) contribute neither an edge nor a graph node; an anchor whose
// links all loop back would otherwise render as an isolated point.
func (b *Builder) Graph(ctx context.Context, node *models.Node, nodeMap models.NodeMap) (*GraphView, error) {
	anchors, err := b.anchors.GetAnchorsByNodeID(ctx, node.NodeID)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: fetch anchors for %s: %w", node.NodeID, err)
	}
	anchorIDs := make([]string, len(anchors))
	for i, a := range anchors {
		anchorIDs[i] = a.AnchorID
	}
	links, err := b.links.GetLinksByAnchorIDs(ctx, anchorIDs)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: fetch links: %w", err)
	}

	view := &GraphView{Nodes: []GraphNode{{ID: node.NodeID, Title: node.Title}}}
	seen := map[string]bool{node.NodeID: true}
	for _, l := range links {
		if l.Anchor1NodeID == node.NodeID && l.Anchor2NodeID == node.NodeID {
			continue
		}
		oppNodeID := l.Anchor1NodeID
		if oppNodeID == node.NodeID {
			oppNodeID = l.Anchor2NodeID
		}
		view.Edges = append(view.Edges, GraphEdge{Source: node.NodeID, Target: oppNodeID})
		if seen[oppNodeID] {
			continue
		}
		seen[oppNodeID] = true
		opp, err := b.resolveNode(ctx, oppNodeID, node, nodeMap)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				view.Nodes = append(view.Nodes, GraphNode{ID: oppNodeID})
				continue
			}
			return nil, fmt.Errorf("linkgraph: fetch opposing node %s: %w", oppNodeID, err)
		}
		view.Nodes = append(view.Nodes, GraphNode{ID: opp.NodeID, Title: opp.Title})
	}
	return view, nil
}

func (b *Builder) resolveNode(ctx context.Context, nodeID string, current *models.Node, nodeMap models.NodeMap) (*models.Node, error) {
	if nodeID == current.NodeID {
		return current, nil
	}
	if n, ok := nodeMap[nodeID]; ok {
		return n, nil
	}
	return b.nodes.GetNode(ctx, nodeID)
}
