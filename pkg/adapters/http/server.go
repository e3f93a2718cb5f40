package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/api"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/text"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/oapi-codegen/runtime"
)

// Server exposes one tree over a JSON API.
//
// Scopes travel as the "scope" query parameter in "a/b" form (absent for the
// default scope) or as a JSON array in request bodies. Requests to documented
// routes are checked against the embedded OpenAPI document before they reach
// a handler.
type Server struct {
	Tree    *tree.Tree
	Metrics http.Handler
	Logger  *slog.Logger

	doc *openapi3.T
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler for t. It panics if the embedded
// OpenAPI document does not load, which only a broken build can cause.
func NewHandler(t *tree.Tree, opts ...Option) http.Handler {
	doc, err := api.Load()
	if err != nil {
		panic(err)
	}
	s := &Server{Tree: t, Logger: logging.NewNop(), doc: doc}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Raw())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(swaggerHTML))
	})

	// Group middlewares run after routing, so the route pattern is known.
	r.Group(func(r chi.Router) {
		r.Use(s.validateRequest)

		r.Get("/nodes", s.ListNodes)
		r.Post("/nodes", s.CreateNode)
		r.Get("/nodes/roots", s.ListRoots)
		r.Get("/nodes/leaves", s.ListLeaves)
		r.Get("/nodes/{id}", s.GetNode)
		r.Delete("/nodes/{id}", s.RemoveNode)
		r.Post("/nodes/{id}/move", s.MoveNode)
		r.Get("/nodes/{id}/{relation}", s.GetRelation)

		r.Get("/tree/validate", s.Validate)
		r.Post("/tree/rebuild", s.Rebuild)
		r.Get("/tree/text", s.Text)
		r.Get("/tree/graph", s.Graph)
	})
	return r
}

// validateRequest checks parameters and bodies against the operation that
// the matched route pattern documents. Undocumented routes pass through.
func (s *Server) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pattern := rctx.RoutePattern()
		item := s.doc.Paths.Value(pattern)
		if item == nil {
			next.ServeHTTP(w, r)
			return
		}
		op := item.GetOperation(r.Method)
		if op == nil {
			next.ServeHTTP(w, r)
			return
		}

		params := make(map[string]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			params[key] = rctx.URLParams.Values[i]
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route: &routers.Route{
				Spec:      s.doc,
				Path:      pattern,
				PathItem:  item,
				Method:    r.Method,
				Operation: op,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.writeError(w, badRequest("%v", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Arbor API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
  };
</script>
</body>
</html>
`

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateNodeRequest is the body of POST /nodes. A zero ParentID inserts a root.
type CreateNodeRequest struct {
	Name     string       `json:"name"`
	Scope    domain.Scope `json:"scope"`
	ParentID domain.ID    `json:"parent_id,omitempty"`
}

// MoveRequest is the body of POST /nodes/{id}/move.
type MoveRequest struct {
	TargetID domain.ID       `json:"target_id,omitempty"`
	Position domain.Position `json:"position"`
}

// RebuildResponse is returned by POST /tree/rebuild.
type RebuildResponse struct {
	Scope      domain.Scope `json:"scope"`
	Renumbered int          `json:"renumbered"`
}

// ErrorResponse carries a failed request's message.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	cfg := s.Tree.Config()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":           "arbor-http",
		"version":       strings.TrimSpace(arbor.Version),
		"api_version":   s.doc.Info.Version,
		"scope":         cfg.ScopeAttrs,
		"dependent":     cfg.Dependent,
		"rebuild_order": cfg.RebuildOrder,
	})
}

func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nodes, err := s.Tree.Nodes(r.Context(), scope)
	s.respondNodes(w, nodes, err)
}

func (s *Server) ListRoots(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nodes, err := s.Tree.Roots(r.Context(), scope)
	s.respondNodes(w, nodes, err)
}

func (s *Server) ListLeaves(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nodes, err := s.Tree.Leaves(r.Context(), scope)
	s.respondNodes(w, nodes, err)
}

func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}

	n := domain.NewNode(body.Name, body.Scope)
	var (
		created *domain.Node
		err     error
	)
	if body.ParentID == domain.NoID {
		created, err = s.Tree.Insert(r.Context(), n)
	} else {
		created, err = s.Tree.InsertChild(r.Context(), n, body.ParentID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created.Record())
}

func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, n.Record())
}

// GetRelation serves the interval queries around one node.
func (s *Server) GetRelation(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var (
		nodes []*domain.Node
		err   error
	)
	switch rel := chi.URLParam(r, "relation"); rel {
	case "children":
		nodes, err = s.Tree.Children(ctx, n)
	case "ancestors":
		nodes, err = s.Tree.Ancestors(ctx, n)
	case "descendants":
		nodes, err = s.Tree.Descendants(ctx, n)
	case "siblings":
		nodes, err = s.Tree.Siblings(ctx, n)
	case "leaves":
		nodes, err = s.Tree.LeavesOf(ctx, n)
	case "text":
		out, err := s.Tree.ToText(ctx, n, nil)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeText(w, out)
		return
	case "level":
		level, err := s.Tree.Level(ctx, n)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"level": level})
		return
	default:
		s.writeError(w, notFound("unknown relation %q", rel))
		return
	}
	s.respondNodes(w, nodes, err)
}

func (s *Server) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}

	mover, _, err := s.Tree.Move(r.Context(), id, body.TargetID, body.Position)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mover.Record())
}

// RemoveNode prunes a node; the "policy" query parameter overrides the configured one.
func (s *Server) RemoveNode(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var policy *domain.Policy
	if err := runtime.BindQueryParameter("form", true, false, "policy", r.URL.Query(), &policy); err != nil {
		s.writeError(w, badRequest("invalid policy: %v", err))
		return
	}
	if policy == nil {
		policy = new(domain.Policy)
	}
	if err := s.Tree.Remove(r.Context(), id, *policy); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate reports the scope's invariants. An inconsistent tree is still a 200.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.Tree.Validate(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := s.Tree.Rebuild(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RebuildResponse{Scope: scope, Renumbered: n})
}

func (s *Server) Text(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nodes, err := s.Tree.Nodes(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeText(w, text.Render(nodes, nil))
}

// Graph returns a Mermaid diagram; "selected" highlights comma separated ids.
func (s *Server) Graph(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var selected *[]domain.ID
	if err := runtime.BindQueryParameter("form", false, false, "selected", r.URL.Query(), &selected); err != nil {
		s.writeError(w, badRequest("invalid selected ids: %v", err))
		return
	}
	nodes, err := s.Tree.Nodes(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var overlay *graph.GraphOverlay
	if selected != nil && len(*selected) > 0 {
		overlay = &graph.GraphOverlay{Selected: *selected}
	}
	writeText(w, graph.GenerateMermaid(nodes, overlay))
}

func (s *Server) node(w http.ResponseWriter, r *http.Request) (*domain.Node, bool) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	n, err := s.Tree.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return n, true
}

func (s *Server) respondNodes(w http.ResponseWriter, nodes []*domain.Node, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]domain.Record, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Record())
	}
	s.writeJSON(w, http.StatusOK, out)
}

func scopeParam(r *http.Request) (domain.Scope, error) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "scope", r.URL.Query(), &raw); err != nil {
		return domain.Scope{}, badRequest("invalid scope: %v", err)
	}
	if raw == nil {
		return domain.Scope{}, nil
	}
	return domain.ParseScope(*raw), nil
}

func idParam(r *http.Request) (domain.ID, error) {
	var id domain.ID
	raw := chi.URLParam(r, "id")
	err := runtime.BindStyledParameterWithOptions("simple", "id", raw, &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil || id <= domain.NoID {
		return domain.NoID, badRequest("invalid node id %q", raw)
	}
	return id, nil
}

// statusError carries an explicit status for request-level failures.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &statusError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &statusError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

// StatusCode maps engine errors onto HTTP statuses.
func StatusCode(err error) int {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidMove),
		errors.Is(err, domain.ErrNotPersisted),
		errors.Is(err, domain.ErrInconsistentTree):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnsupportedPosition),
		errors.Is(err, domain.ErrUnsupportedPolicy),
		errors.Is(err, domain.ErrScopeMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "err", err)
	} else {
		s.Logger.Debug("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
