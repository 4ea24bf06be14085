package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gebo/internal/hyperservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *hyperservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Nodes.
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/roots", h.GetRoots)
	r.Get("/nodes/search", h.SearchNodes)
	r.Get("/nodes/{nodeID}", h.GetNode)
	r.Put("/nodes/{nodeID}", h.UpdateNode)
	r.Delete("/nodes/{nodeID}", h.DeleteNode)
	r.Get("/nodes/{nodeID}/children", h.GetChildren)
	r.Post("/nodes/{nodeID}/move", h.MoveNode)
	r.Post("/nodes/{nodeID}/save", h.SaveContent)
	r.Get("/nodes/{nodeID}/render", h.RenderContent)
	r.Get("/nodes/{nodeID}/linkmenu", h.LinkMenu)
	r.Get("/nodes/{nodeID}/graph", h.Graph)
	r.Get("/nodes/{nodeID}/anchors", h.NodeAnchors)

	// Anchors.
	r.Post("/anchors", h.CreateAnchor)
	r.Post("/anchors/delete", h.DeleteAnchors)
	r.Get("/anchors/{anchorID}", h.GetAnchor)
	r.Get("/anchors/{anchorID}/links", h.AnchorLinks)

	// Links.
	r.Post("/links", h.CreateLink)
	r.Post("/links/delete", h.DeleteLinks)
	r.Get("/links/{linkID}", h.GetLink)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
