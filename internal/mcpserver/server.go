// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Gebo tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gebo/internal/hyperservice"
	"github.com/starford/gebo/internal/models"
)

// Server wraps the MCP server with Gebo tools.
type Server struct {
	mcp *server.MCPServer
	svc *hyperservice.Service
}

// New creates a new MCP server with all Gebo tools registered.
func New(svc *hyperservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Gebo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Search nodes by title."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read a node including its rendered HTML content with link marks painted in."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Node id (e.g. text.<uuid>)")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a new node. Content must be HTML. "+
			"Read the linking contract first via the get_linking_contract tool or "+
			"the gebo://linking-model resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type: text, folder, or recipe")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("content", mcp.Description("HTML body for text nodes")),
		mcp.WithString("parentId", mcp.Description("Optional parent node id (empty for a root node)")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("link_selection",
		mcp.WithDescription("Create a bidirectional link between two text selections. "+
			"Each selection is addressed by character positions in the node's document; "+
			"see the gebo://linking-model resource for the position scheme."),
		mcp.WithString("node1Id", mcp.Required(), mcp.Description("First node id")),
		mcp.WithString("text1", mcp.Required(), mcp.Description("Selected text in the first node")),
		mcp.WithNumber("start1", mcp.Required(), mcp.Description("Start character of the first selection")),
		mcp.WithNumber("end1", mcp.Required(), mcp.Description("End character of the first selection (inclusive)")),
		mcp.WithString("node2Id", mcp.Required(), mcp.Description("Second node id")),
		mcp.WithString("text2", mcp.Required(), mcp.Description("Selected text in the second node")),
		mcp.WithNumber("start2", mcp.Required(), mcp.Description("Start character of the second selection")),
		mcp.WithNumber("end2", mcp.Required(), mcp.Description("End character of the second selection (inclusive)")),
	), s.linkSelection)

	s.mcp.AddTool(mcp.NewTool("get_link_menu",
		mcp.WithDescription("List a node's anchors with their links and the nodes on the far side. "+
			"For recipe nodes this includes the description, ingredients, and steps sub-nodes."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Node id")),
	), s.getLinkMenu)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Derive the link graph around a node: every node it links to and the edges between them."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Node id at the center of the graph")),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("get_linking_contract",
		mcp.WithDescription("Returns the canonical Gebo linking model contract. "+
			"Call this before creating anchors or links to understand the position scheme."),
	), s.getLinkingContract)

	// Resource: linking model contract.
	s.mcp.AddResource(
		mcp.NewResource("gebo://linking-model", "Linking Model Contract",
			mcp.WithResourceDescription("Canonical anchor and link model that all tools follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkingModelResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.svc.SearchNodes(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(nodes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.GetNode(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", nodeID)), nil
	}
	if node.Type == models.NodeTypeText {
		rendered, renderErr := s.svc.RenderContent(ctx, nodeID)
		if renderErr == nil {
			node.Content = rendered
		}
	}
	out, _ := json.MarshalIndent(node, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")
	parentID := req.GetString("parentId", "")

	node, err := s.svc.CreateNode(ctx, hyperservice.CreateNodeRequest{
		Type:     models.NodeType(strings.ToLower(typ)),
		Title:    title,
		Content:  content,
		ParentID: parentID,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", node.NodeID)), nil
}

func (s *Server) linkSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	node1ID, err := req.RequireString("node1Id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node2ID, err := req.RequireString("node2Id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text1, err := req.RequireString("text1")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text2, err := req.RequireString("text2")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start1, err := req.RequireFloat("start1")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end1, err := req.RequireFloat("end1")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start2, err := req.RequireFloat("start2")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end2, err := req.RequireFloat("end2")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	extent1 := &models.TextExtent{Text: text1, StartCharacter: int(start1), EndCharacter: int(end1)}
	extent2 := &models.TextExtent{Text: text2, StartCharacter: int(start2), EndCharacter: int(end2)}

	link, err := s.svc.LinkSelection(ctx, node1ID, extent1, node2ID, extent2)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(link, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLinkMenu(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	menu, err := s.svc.LinkMenu(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(menu) == 0 {
		return mcp.NewToolResultText("no anchors found"), nil
	}
	out, _ := json.MarshalIndent(menu, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.GraphView(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLinkingContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkingModelContract), nil
}

func (s *Server) readLinkingModelResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "gebo://linking-model",
			MIMEType: "text/markdown",
			Text:     LinkingModelContract,
		},
	}, nil
}
