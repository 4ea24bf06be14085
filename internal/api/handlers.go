package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gebo/internal/hyperservice"
	"github.com/starford/gebo/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *hyperservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *hyperservice.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// CreateNode handles POST /nodes.
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		writeFailure(w, http.StatusBadRequest, "type is required")
		return
	}
	node, err := h.svc.CreateNode(r.Context(), req)
	if err != nil {
		respondError(w, "create node", err)
		return
	}
	writeSuccess(w, http.StatusCreated, node)
}

// GetNode handles GET /nodes/{nodeID}.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "get node", err)
		return
	}
	writeSuccess(w, http.StatusOK, node)
}

// GetRoots handles GET /nodes/roots.
func (h *Handler) GetRoots(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.GetRoots(r.Context())
	if err != nil {
		respondError(w, "get roots", err)
		return
	}
	writeSuccess(w, http.StatusOK, nodes)
}

// GetChildren handles GET /nodes/{nodeID}/children.
func (h *Handler) GetChildren(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.GetChildren(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "get children", err)
		return
	}
	writeSuccess(w, http.StatusOK, nodes)
}

// SearchNodes handles GET /nodes/search.
func (h *Handler) SearchNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeFailure(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	nodes, err := h.svc.SearchNodes(r.Context(), q)
	if err != nil {
		respondError(w, "search nodes", err)
		return
	}
	writeSuccess(w, http.StatusOK, nodes)
}

// UpdateNode handles PUT /nodes/{nodeID}.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	props := make([]models.Property, len(req.Properties))
	for i, p := range req.Properties {
		props[i] = models.Property{Field: p.Field, Value: p.Value}
	}
	node, err := h.svc.UpdateNode(r.Context(), chi.URLParam(r, "nodeID"), props)
	if err != nil {
		respondError(w, "update node", err)
		return
	}
	writeSuccess(w, http.StatusOK, node)
}

// MoveNode handles POST /nodes/{nodeID}/move.
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewParentID == "" {
		writeFailure(w, http.StatusBadRequest, "newParentId is required")
		return
	}
	node, err := h.svc.MoveNode(r.Context(), chi.URLParam(r, "nodeID"), req.NewParentID)
	if err != nil {
		respondError(w, "move node", err)
		return
	}
	writeSuccess(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}.
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNode(r.Context(), chi.URLParam(r, "nodeID")); err != nil {
		respondError(w, "delete node", err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// SaveContent handles POST /nodes/{nodeID}/save: reconcile anchors against
// the edited HTML and persist it.
func (h *Handler) SaveContent(w http.ResponseWriter, r *http.Request) {
	var req SaveContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeFailure(w, http.StatusBadRequest, "content is required")
		return
	}
	if err := h.svc.SaveContent(r.Context(), chi.URLParam(r, "nodeID"), req.Content); err != nil {
		respondError(w, "save content", err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// RenderContent handles GET /nodes/{nodeID}/render: the node's HTML with
// stored anchors painted back in as link marks.
func (h *Handler) RenderContent(w http.ResponseWriter, r *http.Request) {
	html, err := h.svc.RenderContent(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "render content", err)
		return
	}
	writeSuccess(w, http.StatusOK, RenderedContent{Content: html})
}

// LinkMenu handles GET /nodes/{nodeID}/linkmenu.
func (h *Handler) LinkMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.svc.LinkMenu(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "link menu", err)
		return
	}
	writeSuccess(w, http.StatusOK, menu)
}

// Graph handles GET /nodes/{nodeID}/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GraphView(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "graph view", err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

// NodeAnchors handles GET /nodes/{nodeID}/anchors.
func (h *Handler) NodeAnchors(w http.ResponseWriter, r *http.Request) {
	anchors, err := h.svc.GetAnchorsByNodeID(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, "node anchors", err)
		return
	}
	writeSuccess(w, http.StatusOK, anchors)
}

// CreateAnchor handles POST /anchors.
func (h *Handler) CreateAnchor(w http.ResponseWriter, r *http.Request) {
	var req CreateAnchorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		writeFailure(w, http.StatusBadRequest, "nodeId is required")
		return
	}
	extent, err := models.UnmarshalExtent(req.Extent)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid extent")
		return
	}
	anchor, err := h.svc.CreateAnchor(r.Context(), req.NodeID, extent)
	if err != nil {
		respondError(w, "create anchor", err)
		return
	}
	writeSuccess(w, http.StatusCreated, anchor)
}

// GetAnchor handles GET /anchors/{anchorID}.
func (h *Handler) GetAnchor(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.svc.GetAnchor(r.Context(), chi.URLParam(r, "anchorID"))
	if err != nil {
		respondError(w, "get anchor", err)
		return
	}
	writeSuccess(w, http.StatusOK, anchor)
}

// AnchorLinks handles GET /anchors/{anchorID}/links.
func (h *Handler) AnchorLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.GetLinksByAnchorID(r.Context(), chi.URLParam(r, "anchorID"))
	if err != nil {
		respondError(w, "anchor links", err)
		return
	}
	writeSuccess(w, http.StatusOK, links)
}

// DeleteAnchors handles POST /anchors/delete.
func (h *Handler) DeleteAnchors(w http.ResponseWriter, r *http.Request) {
	var req DeleteAnchorsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.DeleteAnchors(r.Context(), req.AnchorIDs...); err != nil {
		respondError(w, "delete anchors", err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// CreateLink handles POST /links: the "complete link" action.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Anchor1ID == "" || req.Anchor2ID == "" {
		writeFailure(w, http.StatusBadRequest, "anchor1Id and anchor2Id are required")
		return
	}
	link, err := h.svc.CompleteLink(r.Context(), req.Anchor1ID, req.Anchor2ID)
	if err != nil {
		respondError(w, "create link", err)
		return
	}
	writeSuccess(w, http.StatusCreated, link)
}

// GetLink handles GET /links/{linkID}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.GetLink(r.Context(), chi.URLParam(r, "linkID"))
	if err != nil {
		respondError(w, "get link", err)
		return
	}
	writeSuccess(w, http.StatusOK, link)
}

// DeleteLinks handles POST /links/delete.
func (h *Handler) DeleteLinks(w http.ResponseWriter, r *http.Request) {
	var req DeleteLinksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.DeleteLinks(r.Context(), req.LinkIDs...); err != nil {
		respondError(w, "delete links", err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
