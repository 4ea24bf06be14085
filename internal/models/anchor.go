package models

import (
	"encoding/json"
	"fmt"

	"github.com/starford/gebo/internal/apperr"
)

// Extent describes where an anchor attaches within its node's content.
// A nil Extent means the anchor covers the whole node (image anchors).
// The only concrete variant is *TextExtent.
type Extent interface {
	isExtent()
	Validate() error
}

// TextExtent anchors a sub-range of a text node's content.
// StartCharacter and EndCharacter are inclusive character offsets in the
// document's position numbering minus one (the position immediately
// preceding the anchored run).
type TextExtent struct {
	Text           string `json:"text"`
	StartCharacter int    `json:"startCharacter"`
	EndCharacter   int    `json:"endCharacter"`
}

func (*TextExtent) isExtent() {}

// Validate rejects malformed extents before they reach the store.
func (e *TextExtent) Validate() error {
	if e.StartCharacter < 0 {
		return fmt.Errorf("%w: extent start %d is negative", apperr.ErrValidation, e.StartCharacter)
	}
	if e.EndCharacter < e.StartCharacter {
		return fmt.Errorf("%w: extent end %d precedes start %d", apperr.ErrValidation, e.EndCharacter, e.StartCharacter)
	}
	if got, want := len([]rune(e.Text)), e.EndCharacter-e.StartCharacter+1; got != want {
		return fmt.Errorf("%w: extent text length %d does not span [%d, %d]", apperr.ErrValidation, got, e.StartCharacter, e.EndCharacter)
	}
	return nil
}

type extentJSON struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	StartCharacter int    `json:"startCharacter"`
	EndCharacter   int    `json:"endCharacter"`
}

// MarshalExtent encodes an extent as tagged JSON; nil encodes as JSON null.
func MarshalExtent(e Extent) ([]byte, error) {
	switch v := e.(type) {
	case nil:
		return []byte("null"), nil
	case *TextExtent:
		return json.Marshal(extentJSON{
			Type:           "text",
			Text:           v.Text,
			StartCharacter: v.StartCharacter,
			EndCharacter:   v.EndCharacter,
		})
	default:
		return nil, fmt.Errorf("models: unknown extent variant %T", e)
	}
}

// UnmarshalExtent decodes tagged extent JSON; JSON null decodes to nil.
func UnmarshalExtent(data []byte) (Extent, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw extentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("models: decode extent: %w", err)
	}
	switch raw.Type {
	case "text":
		return &TextExtent{
			Text:           raw.Text,
			StartCharacter: raw.StartCharacter,
			EndCharacter:   raw.EndCharacter,
		}, nil
	default:
		return nil, fmt.Errorf("models: unknown extent type %q", raw.Type)
	}
}

// Anchor marks a linkable region of one node's content.
type Anchor struct {
	AnchorID string `json:"anchorId"`
	NodeID   string `json:"nodeId"`
	Extent   Extent `json:"-"`
}

// TextExtent returns the anchor's extent when it is a text extent.
func (a *Anchor) TextExtent() (*TextExtent, bool) {
	te, ok := a.Extent.(*TextExtent)
	return te, ok
}

type anchorJSON struct {
	AnchorID string          `json:"anchorId"`
	NodeID   string          `json:"nodeId"`
	Extent   json.RawMessage `json:"extent"`
}

// MarshalJSON encodes the anchor with its tagged extent.
func (a Anchor) MarshalJSON() ([]byte, error) {
	ext, err := MarshalExtent(a.Extent)
	if err != nil {
		return nil, err
	}
	return json.Marshal(anchorJSON{AnchorID: a.AnchorID, NodeID: a.NodeID, Extent: ext})
}

// UnmarshalJSON decodes the anchor and its tagged extent.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	var raw anchorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ext, err := UnmarshalExtent(raw.Extent)
	if err != nil {
		return err
	}
	a.AnchorID = raw.AnchorID
	a.NodeID = raw.NodeID
	a.Extent = ext
	return nil
}

// Link is an undirected connection between two anchors. The two anchors may
// belong to the same node (a self-link).
type Link struct {
	LinkID        string `json:"linkId"`
	Anchor1ID     string `json:"anchor1Id"`
	Anchor1NodeID string `json:"anchor1NodeId"`
	Anchor2ID     string `json:"anchor2Id"`
	Anchor2NodeID string `json:"anchor2NodeId"`
}

// Opposite returns the endpoint on the other side of the link relative to
// anchorID. A degenerate link whose endpoints are the same anchor opposes
// itself.
func (l *Link) Opposite(anchorID string) (oppAnchorID, oppNodeID string) {
	if l.Anchor1ID == anchorID {
		return l.Anchor2ID, l.Anchor2NodeID
	}
	return l.Anchor1ID, l.Anchor1NodeID
}

// SelfLink reports whether both endpoints live on the same node.
func (l *Link) SelfLink() bool {
	return l.Anchor1NodeID == l.Anchor2NodeID
}

// LinkEndpoint is one resolved far side of a link: the link itself plus the
// opposing node and anchor.
type LinkEndpoint struct {
	Link      Link    `json:"link"`
	OppNode   *Node   `json:"oppNode"`
	OppAnchor *Anchor `json:"oppAnchor"`
}

// AnchorLinkEntry is the per-anchor view assembled for the link menu:
// the anchor and every link endpoint opposing it. Derived, never persisted.
type AnchorLinkEntry struct {
	Anchor *Anchor        `json:"anchor"`
	Links  []LinkEndpoint `json:"links"`
}
