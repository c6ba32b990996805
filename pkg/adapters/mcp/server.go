// Package mcp exposes a chatflow engine as Model Context Protocol tools.
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

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/transition"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TransitionsURI is the resource holding the transition table.
const TransitionsURI = "chatflow://transitions"

// MessageArgs are the arguments of process_message.
type MessageArgs struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// UserArgs are the arguments of the per-user read tools.
type UserArgs struct {
	UserID string `json:"user_id"`
}

// ContextResponse is the result of get_user_context.
type ContextResponse struct {
	Found   bool                `json:"found" jsonschema_description:"Whether the user has a context"`
	Context *domain.UserContext `json:"context,omitempty" jsonschema_description:"The user's conversation context"`
}

// FlowResponse is the result of get_conversation_flow.
type FlowResponse struct {
	Flow []domain.ConversationState `json:"flow" jsonschema_description:"State reached by each turn, oldest first"`
}

// MetricsResponse is the result of get_quality_metrics.
type MetricsResponse struct {
	Metrics []domain.ConversationMetrics `json:"metrics" jsonschema_description:"Per-turn quality metrics, oldest first"`
	Average float64                      `json:"average_quality_score" jsonschema_description:"Mean per-turn quality score"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    ports.Engine
	table     *transition.Table
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTable publishes table as the transitions resource.
func WithTable(table *transition.Table) Option {
	return func(s *Server) {
		s.table = table
	}
}

// NewServer creates a new MCP server instance.
func NewServer(engine ports.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("chatflow-mcp", strings.TrimSpace(chatflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if s.table != nil {
		s.registerResources()
	}
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("process_message",
		mcp.WithDescription("Process one user message and return the assistant's reply, analysis and quality metrics."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user the conversation belongs to")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithString("channel", mcp.Description("Channel the message arrived on (default: web)")),
		mcp.WithOutputSchema[domain.TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleProcessMessage))

	s.mcpServer.AddTool(mcp.NewTool("get_user_context",
		mcp.WithDescription("Get the conversation context of a user."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user to look up")),
		mcp.WithOutputSchema[ContextResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetUserContext))

	s.mcpServer.AddTool(mcp.NewTool("get_conversation_flow",
		mcp.WithDescription("Get the sequence of conversation states a user went through."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user to look up")),
		mcp.WithOutputSchema[FlowResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetConversationFlow))

	s.mcpServer.AddTool(mcp.NewTool("get_quality_metrics",
		mcp.WithDescription("Get the per-turn quality metrics of a user and their average."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user to look up")),
		mcp.WithOutputSchema[MetricsResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetQualityMetrics))
}

func (s *Server) handleProcessMessage(ctx context.Context, _ mcp.CallToolRequest, args MessageArgs) (domain.TurnResult, error) {
	result, err := s.engine.ProcessMessage(ctx, args.UserID, args.Message, args.Channel)
	if err != nil {
		s.logger.Warn("MCP process_message: rejected", "error", err, "user_id", args.UserID)
		return domain.TurnResult{}, fmt.Errorf("process message failed: %w", err)
	}
	return *result, nil
}

func (s *Server) handleGetUserContext(ctx context.Context, _ mcp.CallToolRequest, args UserArgs) (ContextResponse, error) {
	uc, ok := s.engine.GetUserContext(ctx, args.UserID)
	return ContextResponse{Found: ok, Context: uc}, nil
}

func (s *Server) handleGetConversationFlow(ctx context.Context, _ mcp.CallToolRequest, args UserArgs) (FlowResponse, error) {
	return FlowResponse{Flow: s.engine.GetConversationFlow(ctx, args.UserID)}, nil
}

func (s *Server) handleGetQualityMetrics(ctx context.Context, _ mcp.CallToolRequest, args UserArgs) (MetricsResponse, error) {
	return MetricsResponse{
		Metrics: s.engine.GetQualityMetrics(ctx, args.UserID),
		Average: s.engine.GetAverageQualityScore(ctx, args.UserID),
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TransitionsURI, "Conversation transition table",
		mcp.WithMIMEType("application/json"),
	), s.readTransitions)
}

func (s *Server) readTransitions(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.table.Edges())
	if err != nil {
		return nil, fmt.Errorf("failed to encode transitions: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TransitionsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
