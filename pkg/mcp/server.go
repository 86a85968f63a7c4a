// Package mcp implements a Model Context Protocol server exposing the
// recorded build history as MCP tools over stdio transport.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "issuetrend"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// ErrNoStore is returned by NewServer when ServerDeps.Store is nil.
var ErrNoStore = errors.New("mcp server requires a history store")

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value optional fields use production defaults.
type ServerDeps struct {
	// Store is the build history to serve. Required.
	Store history.Store

	// Version is reported as the implementation version.
	Version string

	// MaxDepth bounds trend walks. Non-positive uses history.DefaultMaxDepth.
	MaxDepth int

	// TrendLength is the trend length used when a call does not set one.
	TrendLength int

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with issuetrend tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	h       *handlers
}

// NewServer creates a new MCP server with all issuetrend tools registered.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Store == nil {
		return nil, ErrNoStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	opts := &mcpsdk.ServerOptions{Logger: logger}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		opts,
	)

	agg := history.NewAggregator(deps.Store, history.WithMaxDepth(deps.MaxDepth), history.WithLogger(logger))

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		h: &handlers{
			store:       deps.Store,
			agg:         agg,
			trendLength: deps.TrendLength,
		},
	}

	srv.registerTools()

	return srv, nil
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameBuild,
		Description: buildToolDescription,
	}, withMetrics(s.metrics, ToolNameBuild, withTracing(s.tracer, ToolNameBuild, s.h.handleBuild)))
	s.trackTool(ToolNameBuild)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameTrend,
		Description: trendToolDescription,
	}, withMetrics(s.metrics, ToolNameTrend, withTracing(s.tracer, ToolNameTrend, s.h.handleTrend)))
	s.trackTool(ToolNameTrend)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameBuilds,
		Description: buildsToolDescription,
	}, withMetrics(s.metrics, ToolNameBuilds, withTracing(s.tracer, ToolNameBuilds, s.h.handleBuilds)))
	s.trackTool(ToolNameBuilds)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if result != nil && result.IsError {
			span.SetAttributes(attribute.Bool("mcp.tool.error", true))
		}

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	buildToolDescription = "Show one recorded build: status, health, new and fixed issues, " +
		"changed messages and blame. Omit build_id for the latest build."

	trendToolDescription = "Show the issue trend along the predecessor chain of a build, " +
		"with per-build counts and a summary."

	buildsToolDescription = "List the ids of all recorded builds in ascending order."
)
