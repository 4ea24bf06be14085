// Package reconcile brings persisted anchor extents back in line with an
// edited document and removes anchors and links whose backing content is
// gone. It runs on every explicit save of a text node.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/starford/gebo/internal/doc"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/refresh"
	"github.com/starford/gebo/internal/store"
)

// Reconciler recomputes extents and cascades orphan deletions on save.
type Reconciler struct {
	anchors store.AnchorStore
	links   store.LinkStore
	nodes   store.NodeStore
	signals *refresh.Signals
}

// New creates a Reconciler. signals may be nil.
func New(anchors store.AnchorStore, links store.LinkStore, nodes store.NodeStore, signals *refresh.Signals) *Reconciler {
	return &Reconciler{anchors: anchors, links: links, nodes: nodes, signals: signals}
}

// Save reconciles the stored anchors of nodeID against the edited document,
// then persists the document as the node's new content.
//
// The steps are deliberately best-effort, not transactional: a failed store
// call aborts only its own step, every failure is collected, and the
// aggregate is returned. Links are always deleted before their anchors so a
// link never references a missing anchor.
func (r *Reconciler) Save(ctx context.Context, nodeID string, d *doc.Document) error {
	stored, err := r.anchors.GetAnchorsByNodeID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("reconcile: fetch anchors for %s: %w", nodeID, err)
	}
	storedByID := make(map[string]*models.Anchor, len(stored))
	for _, a := range stored {
		storedByID[a.AnchorID] = a
	}

	var errs []error

	// Pass 1: recompute extents for every anchor still marked in the editor.
	present := make(map[string]bool)
	for run := range d.Runs() {
		mark := run.Mark("link")
		if mark == nil {
			continue
		}
		anchorID := mark.Attrs["target"]
		if anchorID == "" {
			continue
		}
		present[anchorID] = true

		a, ok := storedByID[anchorID]
		if !ok {
			continue
		}
		te, ok := a.TextExtent()
		if !ok {
			// Image anchors carry no offsets; nothing to recompute.
			continue
		}
		start := run.Pos - 1
		end := start + utf8.RuneCountInString(run.Text) - 1
		if te.Text == run.Text && te.StartCharacter == start && te.EndCharacter == end {
			continue
		}
		if err := r.anchors.UpdateExtent(ctx, anchorID, &models.TextExtent{
			Text:           run.Text,
			StartCharacter: start,
			EndCharacter:   end,
		}); err != nil {
			errs = append(errs, fmt.Errorf("reconcile: update extent %s: %w", anchorID, err))
		}
	}

	// Pass 2: anchors stored but no longer represented in the editor.
	var doomed []string
	doomedSet := make(map[string]bool)
	for _, a := range stored {
		if !present[a.AnchorID] {
			doomed = append(doomed, a.AnchorID)
			doomedSet[a.AnchorID] = true
		}
	}

	// Pass 3: cascade. Deleting one side of a same-node link also severs the
	// paired side: its editor mark is cleared and its anchor record goes too.
	// The doomed list grows while we walk it.
	linkSet := make(map[string]bool)
	var linkIDs []string
	for i := 0; i < len(doomed); i++ {
		anchorID := doomed[i]
		links, err := r.links.GetLinksByAnchorID(ctx, anchorID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile: fetch links for %s: %w", anchorID, err))
			continue
		}
		for _, l := range links {
			if !linkSet[l.LinkID] {
				linkSet[l.LinkID] = true
				linkIDs = append(linkIDs, l.LinkID)
			}
			if !l.SelfLink() {
				continue
			}
			other, _ := l.Opposite(anchorID)
			if other == anchorID || doomedSet[other] {
				continue
			}
			// Clear the paired mark by its target attribute. Pass 1 may have
			// shifted the anchor's offsets, so the stored extent cannot be
			// trusted to locate the mark in the edited document.
			d.UnsetLinkMarkByTarget(other)
			doomedSet[other] = true
			doomed = append(doomed, other)
		}
	}

	// Commit: links first, then anchors, then content.
	if len(linkIDs) > 0 {
		if err := r.links.DeleteLinks(ctx, linkIDs...); err != nil {
			errs = append(errs, fmt.Errorf("reconcile: delete links: %w", err))
		}
	}
	if len(doomed) > 0 {
		if err := r.anchors.DeleteAnchors(ctx, doomed...); err != nil {
			errs = append(errs, fmt.Errorf("reconcile: delete anchors: %w", err))
		}
	}
	if _, err := r.nodes.UpdateNode(ctx, nodeID, []models.Property{
		{Field: models.FieldContent, Value: d.HTML()},
	}); err != nil {
		errs = append(errs, fmt.Errorf("reconcile: update content of %s: %w", nodeID, err))
	}

	if r.signals != nil {
		r.signals.Anchors.Bump()
		r.signals.Links.Bump()
		r.signals.Content.Bump()
	}

	return errors.Join(errs...)
}
