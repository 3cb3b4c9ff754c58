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

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ResourceScheme prefixes the URI of every automaton resource.
const ResourceScheme = "automata://"

// TransitResponse is the structured result of the transit tool.
type TransitResponse struct {
	Automaton string         `json:"automaton" jsonschema_description:"The automaton that performed the transition"`
	Next      string         `json:"next" jsonschema_description:"The active state after the transition"`
	Output    runtime.Output `json:"output,omitempty" jsonschema_description:"Transition output, including the context snapshot"`
	Views     []string       `json:"views,omitempty" jsonschema_description:"Views of the active state"`
	Rendered  []any          `json:"rendered,omitempty" jsonschema_description:"Rendered view outputs, in view order"`
	Actions   []string       `json:"actions" jsonschema_description:"Actions available in the active state"`
}

// Server exposes a Factory as an MCP Server.
type Server struct {
	factory   *runtime.Factory
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. Automata registered after this call
// are reachable through the tools but have no resource.
func NewServer(f *runtime.Factory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		factory:   f,
		logger:    logger,
		mcpServer: server.NewMCPServer("automata-mcp", strings.TrimSpace(automata.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE. It returns when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_automata
	s.mcpServer.AddTool(mcp.NewTool("list_automata",
		mcp.WithDescription("List the registered automata with their active state."),
	), s.handleList)

	// TOOL: inspect_automaton
	s.mcpServer.AddTool(mcp.NewTool("inspect_automaton",
		mcp.WithDescription("Get the states, actions, views and context of one automaton."),
		mcp.WithString("automaton", mcp.Required(), mcp.Description("Automaton name")),
	), s.handleInspect)

	// TOOL: transit
	transitTool := mcp.NewTool("transit",
		mcp.WithDescription("Perform an action. Without an automaton, the first automaton whose active state defines the action performs it."),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("automaton", mcp.Description("Target automaton (optional)")),
		mcp.WithString("input", mcp.Description("JSON encoded action input (optional)")),
		mcp.WithOutputSchema[TransitResponse](),
	)
	s.mcpServer.AddTool(transitTool, mcp.NewStructuredToolHandler(s.handleTransit))
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		Name    string `json:"name"`
		Current string `json:"current"`
	}
	list := make([]entry, 0)
	for _, a := range s.factory.Automata() {
		e := entry{Name: a.Name()}
		if cur := a.Current(); cur != nil {
			e.Current = cur.Name()
		}
		list = append(list, e)
	}
	jsonBytes, _ := json.Marshal(list)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := request.GetArguments()["automaton"].(string)
	a, ok := s.factory.Automaton(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown automaton: %s", name)), nil
	}
	jsonBytes, err := json.Marshal(a.Snapshot())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleTransit(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TransitResponse, error) {
	action, _ := args["action"].(string)
	if action == "" {
		return TransitResponse{}, errors.New("action is required")
	}
	target, _ := args["automaton"].(string)

	var input any
	if raw, ok := args["input"].(string); ok && raw != "" {
		clean, err := automata.SanitizeInput(raw)
		if err != nil {
			s.logger.Warn("MCP Transit: input rejected", "err", err, "size", len(raw))
			return TransitResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		raw = clean
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			// Plain text input is passed through verbatim.
			input = raw
		}
	}

	a, omega, err := s.factory.Route(ctx, runtime.TransitRequest{
		Action:    action,
		Input:     input,
		Automaton: target,
		Name:      "mcp",
	})
	if err != nil {
		s.logger.Warn("MCP Transit: request rejected", "action", action, "automaton", target, "err", err)
		return TransitResponse{}, fmt.Errorf("transit failed: %w", err)
	}

	d := runtime.NewDelta(action, input, "")
	rendered, err := runtime.RenderAll(ctx, a, d, omega)
	if err != nil {
		s.logger.Error("MCP Transit: render failed", "automaton", a.Name(), "err", err)
	}

	output := make(runtime.Output, len(omega.Output))
	for k, v := range omega.Output {
		if k != domain.OutputBuffer {
			output[k] = v
		}
	}

	resp := TransitResponse{
		Automaton: a.Name(),
		Next:      omega.Next,
		Output:    output,
		Views:     omega.ViewNames(),
		Rendered:  rendered,
		Actions:   []string{},
	}
	if cur := a.Current(); cur != nil {
		resp.Actions = cur.Actions()
	}
	return resp, nil
}

func (s *Server) registerResources() {
	for _, a := range s.factory.Automata() {
		a := a
		uri := ResourceScheme + a.Name()
		// EXPOSE: automata://{name}
		s.mcpServer.AddResource(mcp.NewResource(uri, "Automaton "+a.Name(),
			mcp.WithResourceDescription("Snapshot of the automaton: active state, states and context"),
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			jsonBytes, err := json.Marshal(a.Snapshot())
			if err != nil {
				return nil, fmt.Errorf("failed to inspect automaton: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(jsonBytes),
				},
			}, nil
		})
	}
}
