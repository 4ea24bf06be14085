// Package project re-applies persisted anchors as inline link marks when a
// node's content is loaded into a fresh document.
package project

import (
	"context"
	"fmt"

	"github.com/starford/gebo/internal/doc"
	"github.com/starford/gebo/internal/store"
)

// Projector paints stored anchors back into a document.
type Projector struct {
	anchors store.AnchorStore
	links   store.LinkStore
}

// New creates a Projector.
func New(anchors store.AnchorStore, links store.LinkStore) *Projector {
	return &Projector{anchors: anchors, links: links}
}

// Apply sets a link mark for every text-extent anchor of nodeID, pointing at
// the opposing node of the anchor's first link. Anchors without a link are
// skipped; an anchor is expected to hold at most one link, and when it holds
// more the first in store order wins. Marks applied before a failing anchor
// are not rolled back.
func (p *Projector) Apply(ctx context.Context, d *doc.Document, nodeID string) error {
	anchors, err := p.anchors.GetAnchorsByNodeID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("project: fetch anchors for %s: %w", nodeID, err)
	}
	for _, anchor := range anchors {
		te, ok := anchor.TextExtent()
		if !ok {
			continue
		}
		links, err := p.links.GetLinksByAnchorID(ctx, anchor.AnchorID)
		if err != nil {
			return fmt.Errorf("project: fetch links for %s: %w", anchor.AnchorID, err)
		}
		if len(links) == 0 {
			// Freshly created anchor whose link was never completed.
			continue
		}
		oppNodeID := links[0].Anchor1NodeID
		if oppNodeID == nodeID {
			oppNodeID = links[0].Anchor2NodeID
		}
		if err := d.SetLinkMark(te.StartCharacter+1, te.EndCharacter+1, "/"+oppNodeID, anchor.AnchorID); err != nil {
			return fmt.Errorf("project: mark anchor %s: %w", anchor.AnchorID, err)
		}
	}
	return nil
}
