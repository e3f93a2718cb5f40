// Package mcp exposes a tree to Model Context Protocol clients. Agents get
// tools to insert, move, remove, validate and rebuild nodes, plus a text view
// of a scope.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/text"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// InfoURI names the resource describing the served tree.
const InfoURI = "arbor://info"

// InsertArgs are the arguments of insert_node. Scope is "a/b" and only
// applies to roots; children take their parent's scope.
type InsertArgs struct {
	Name     string    `json:"name"`
	Scope    string    `json:"scope,omitempty"`
	ParentID domain.ID `json:"parent_id,omitempty"`
}

type MoveArgs struct {
	ID       domain.ID       `json:"id"`
	Position domain.Position `json:"position"`
	TargetID domain.ID       `json:"target_id,omitempty"`
}

type RemoveArgs struct {
	ID     domain.ID     `json:"id"`
	Policy domain.Policy `json:"policy,omitempty"`
}

type ScopeArgs struct {
	Scope string `json:"scope,omitempty"`
}

// NodeResult is a node as returned by the mutating tools.
type NodeResult struct {
	ID     domain.ID `json:"id" jsonschema_description:"Node id"`
	Name   string    `json:"name"`
	Scope  []string  `json:"scope,omitempty"`
	Parent domain.ID `json:"parent,omitempty" jsonschema_description:"Parent id, absent for roots"`
	Left   int64     `json:"left"`
	Right  int64     `json:"right"`
}

type RemoveResult struct {
	Removed domain.ID `json:"removed"`
}

type ValidateResult struct {
	Scope      string             `json:"scope"`
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

type RebuildResult struct {
	Scope      string `json:"scope"`
	Renumbered int    `json:"renumbered"`
}

// Server wraps a tree and exposes it as an MCP server.
type Server struct {
	tree      *tree.Tree
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer registers the tools and resources for t.
func NewServer(t *tree.Tree, opts ...Option) *Server {
	s := &Server{
		tree:      t,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening", "addr", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not stop mcp server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("insert_node",
		mcp.WithDescription("Insert a node as the last root of a scope, or as the last child of parent_id."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Node name")),
		mcp.WithString("scope", mcp.Description("Scope values joined by '/', for roots")),
		mcp.WithNumber("parent_id", mcp.Description("Parent node id")),
		mcp.WithOutputSchema[NodeResult](),
	), mcp.NewStructuredToolHandler(s.handleInsert))

	s.mcpServer.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node and its subtree relative to a target node."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Node to move")),
		mcp.WithString("position", mcp.Required(),
			mcp.Enum(string(domain.PositionChild), string(domain.PositionLeft), string(domain.PositionRight), string(domain.PositionRoot)),
			mcp.Description("Where to place the node; 'left' or 'right' without a target swaps with the adjacent sibling")),
		mcp.WithNumber("target_id", mcp.Description("Target node, not used for 'root'")),
		mcp.WithOutputSchema[NodeResult](),
	), mcp.NewStructuredToolHandler(s.handleMove))

	s.mcpServer.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node. 'cascade' removes its subtree, 'detach' hands its children to its parent."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Node to remove")),
		mcp.WithString("policy", mcp.Enum(string(domain.PolicyCascade), string(domain.PolicyDetach)),
			mcp.Description("Overrides the configured policy")),
		mcp.WithOutputSchema[RemoveResult](),
	), mcp.NewStructuredToolHandler(s.handleRemove))

	s.mcpServer.AddTool(mcp.NewTool("validate_tree",
		mcp.WithDescription("Check the nested set invariants of a scope."),
		mcp.WithString("scope", mcp.Description("Scope values joined by '/'")),
		mcp.WithOutputSchema[ValidateResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("rebuild_tree",
		mcp.WithDescription("Renumber a scope from its parent pointers."),
		mcp.WithString("scope", mcp.Description("Scope values joined by '/'")),
		mcp.WithOutputSchema[RebuildResult](),
	), mcp.NewStructuredToolHandler(s.handleRebuild))

	s.mcpServer.AddTool(mcp.NewTool("show_tree",
		mcp.WithDescription("Render a scope as indented text, one '*' per level."),
		mcp.WithString("scope", mcp.Description("Scope values joined by '/'")),
	), s.handleShow)
}

func (s *Server) handleInsert(ctx context.Context, _ mcp.CallToolRequest, args InsertArgs) (NodeResult, error) {
	var (
		n   *domain.Node
		err error
	)
	if args.ParentID == domain.NoID {
		n, err = s.tree.Insert(ctx, domain.NewNode(args.Name, domain.ParseScope(args.Scope)))
	} else {
		var parent *domain.Node
		if parent, err = s.tree.Get(ctx, args.ParentID); err == nil {
			n, err = s.tree.InsertChild(ctx, domain.NewNode(args.Name, parent.Scope), parent.ID)
		}
	}
	if err != nil {
		s.logger.Debug("mcp insert rejected", "name", args.Name, "err", err)
		return NodeResult{}, err
	}
	return nodeResult(n), nil
}

func (s *Server) handleMove(ctx context.Context, _ mcp.CallToolRequest, args MoveArgs) (NodeResult, error) {
	pos, err := domain.ParsePosition(string(args.Position))
	if err != nil {
		return NodeResult{}, err
	}
	var moved *domain.Node
	switch {
	case args.TargetID == domain.NoID && pos == domain.PositionLeft:
		moved, err = s.tree.MoveLeft(ctx, args.ID)
	case args.TargetID == domain.NoID && pos == domain.PositionRight:
		moved, err = s.tree.MoveRight(ctx, args.ID)
	default:
		moved, _, err = s.tree.Move(ctx, args.ID, args.TargetID, pos)
	}
	if err != nil {
		s.logger.Debug("mcp move rejected", "id", args.ID, "err", err)
		return NodeResult{}, err
	}
	return nodeResult(moved), nil
}

func (s *Server) handleRemove(ctx context.Context, _ mcp.CallToolRequest, args RemoveArgs) (RemoveResult, error) {
	if err := s.tree.Remove(ctx, args.ID, args.Policy); err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Removed: args.ID}, nil
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args ScopeArgs) (ValidateResult, error) {
	scope := domain.ParseScope(args.Scope)
	report, err := s.tree.Validate(ctx, scope)
	if err != nil {
		return ValidateResult{}, err
	}
	return ValidateResult{Scope: scope.String(), Valid: report.Valid, Violations: report.Violations}, nil
}

func (s *Server) handleRebuild(ctx context.Context, _ mcp.CallToolRequest, args ScopeArgs) (RebuildResult, error) {
	scope := domain.ParseScope(args.Scope)
	n, err := s.tree.Rebuild(ctx, scope)
	if err != nil {
		return RebuildResult{}, err
	}
	return RebuildResult{Scope: scope.String(), Renumbered: n}, nil
}

func (s *Server) handleShow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.tree.Nodes(ctx, domain.ParseScope(request.GetString("scope", "")))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("show failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text.Render(nodes, nil)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(InfoURI, "Tree configuration",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		cfg := s.tree.Config()
		data, err := json.Marshal(map[string]any{
			"version":       strings.TrimSpace(arbor.Version),
			"scope":         cfg.ScopeAttrs,
			"dependent":     cfg.Dependent,
			"rebuild_order": cfg.RebuildOrder,
		})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: InfoURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func nodeResult(n *domain.Node) NodeResult {
	rec := n.Record()
	return NodeResult{ID: rec.ID, Name: rec.Name, Scope: rec.Scope, Parent: rec.Parent, Left: rec.Left, Right: rec.Right}
}
