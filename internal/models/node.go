// Package models defines the domain types for Gebo.
package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// NodeType identifies the kind of document a node holds.
type NodeType string

// Supported node types.
const (
	NodeTypeText   NodeType = "text"
	NodeTypeImage  NodeType = "image"
	NodeTypeFolder NodeType = "folder"
	NodeTypeRecipe NodeType = "recipe"
	NodeTypePDF    NodeType = "pdf"
	NodeTypeAudio  NodeType = "audio"
	NodeTypeVideo  NodeType = "video"
)

var nodeTypes = []interface{}{
	NodeTypeText, NodeTypeImage, NodeTypeFolder, NodeTypeRecipe,
	NodeTypePDF, NodeTypeAudio, NodeTypeVideo,
}

// NodePath locates a node in the folder hierarchy. Path is the ordered list
// of ancestor ids ending in the node's own id; Children lists direct child ids.
type NodePath struct {
	Path     []string `json:"path"`
	Children []string `json:"children"`
}

// FolderMeta holds folder-only metadata.
type FolderMeta struct {
	ViewType string `json:"viewType"` // "list" or "grid"
}

// RecipeMeta holds recipe-only metadata. The description, ingredients, and
// steps of a recipe live in separate child text nodes referenced by id.
type RecipeMeta struct {
	DescriptionID string `json:"descriptionId"`
	IngredientsID string `json:"ingredientsId"`
	StepsID       string `json:"stepsId"`
	Serving       int    `json:"serving"`
	Cuisine       string `json:"cuisine"`
	Time          int    `json:"time"`
}

// Node is a stored hypermedia document. Content is an HTML fragment for text
// nodes and a URL for image nodes. Exactly one of Recipe/Folder is non-nil
// when Type is recipe/folder respectively; both are nil otherwise.
type Node struct {
	NodeID        string      `json:"nodeId"`
	Type          NodeType    `json:"type"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	FilePath      NodePath    `json:"filePath"`
	Collaborators []string    `json:"collaborators,omitempty"`
	Recipe        *RecipeMeta `json:"recipe,omitempty"`
	Folder        *FolderMeta `json:"folder,omitempty"`
	DateCreated   time.Time   `json:"dateCreated,omitempty"`
}

// Validate checks the structural invariants of a node.
func (n *Node) Validate() error {
	if err := validation.ValidateStruct(n,
		validation.Field(&n.NodeID, validation.Required),
		validation.Field(&n.Type, validation.Required, validation.In(nodeTypes...)),
		validation.Field(&n.FilePath, validation.Required),
	); err != nil {
		return err
	}
	if len(n.FilePath.Path) == 0 {
		return fmt.Errorf("node %s: file path is empty", n.NodeID)
	}
	if last := n.FilePath.Path[len(n.FilePath.Path)-1]; last != n.NodeID {
		return fmt.Errorf("node %s: file path ends in %q, must end in own id", n.NodeID, last)
	}
	if n.Type == NodeTypeRecipe && n.Recipe == nil {
		return fmt.Errorf("node %s: recipe node without recipe metadata", n.NodeID)
	}
	if n.Type == NodeTypeFolder && n.Folder == nil {
		return fmt.Errorf("node %s: folder node without folder metadata", n.NodeID)
	}
	return nil
}

// Parent returns the id of the node's parent folder, or "" for a root node.
func (n *Node) Parent() string {
	if len(n.FilePath.Path) < 2 {
		return ""
	}
	return n.FilePath.Path[len(n.FilePath.Path)-2]
}

// NodeMap is an in-memory nodeId -> Node lookup used as a fast path when
// resolving opposing link endpoints.
type NodeMap map[string]*Node

// Property is a single field assignment in a partial node update.
type Property struct {
	Field string `json:"fieldName"`
	Value any    `json:"value"`
}

// Patchable node fields.
const (
	FieldTitle         = "title"
	FieldContent       = "content"
	FieldCollaborators = "collaborators"
	FieldViewType      = "viewType"
	FieldServing       = "serving"
	FieldCuisine       = "cuisine"
	FieldTime          = "time"
)
