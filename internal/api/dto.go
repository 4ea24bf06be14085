package api

import (
	"encoding/json"

	"github.com/starford/gebo/internal/hyperservice"
)

// CreateNodeRequest is the request body for creating a node (aliased from
// the service layer).
type CreateNodeRequest = hyperservice.CreateNodeRequest

// UpdateNodeRequest carries a partial property patch.
type UpdateNodeRequest struct {
	Properties []propertyDTO `json:"properties" validate:"required"`
}

type propertyDTO struct {
	Field string `json:"fieldName" example:"content" validate:"required"`
	Value any    `json:"value"`
}

// MoveNodeRequest names the new parent folder.
type MoveNodeRequest struct {
	NewParentID string `json:"newParentId" example:"folder.1234" validate:"required"`
}

// SaveContentRequest carries the edited HTML of a text node.
type SaveContentRequest struct {
	Content string `json:"content" example:"<p>Hello world</p>" validate:"required"`
}

// CreateAnchorRequest marks a region of one node as linkable. Extent is the
// tagged extent JSON, or null for a whole-node (image) anchor.
type CreateAnchorRequest struct {
	NodeID string          `json:"nodeId" example:"text.1234" validate:"required"`
	Extent json.RawMessage `json:"extent"`
}

// DeleteAnchorsRequest names the anchors to delete.
type DeleteAnchorsRequest struct {
	AnchorIDs []string `json:"anchorIds" validate:"required"`
}

// CreateLinkRequest connects two existing anchors.
type CreateLinkRequest struct {
	Anchor1ID string `json:"anchor1Id" example:"anchor.1234" validate:"required"`
	Anchor2ID string `json:"anchor2Id" example:"anchor.5678" validate:"required"`
}

// DeleteLinksRequest names the links to delete.
type DeleteLinksRequest struct {
	LinkIDs []string `json:"linkIds" validate:"required"`
}

// RenderedContent wraps the anchor-decorated HTML of a text node.
type RenderedContent struct {
	Content string `json:"content"`
}
