package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
)

// Tool name constants.
const (
	ToolNameBuild  = "issuetrend_build"
	ToolNameTrend  = "issuetrend_trend"
	ToolNameBuilds = "issuetrend_builds"
)

// Sentinel errors for tool input validation.
var (
	// ErrNegativeBuildID indicates a negative build_id parameter.
	ErrNegativeBuildID = errors.New("build_id must not be negative")
	// ErrNegativeLength indicates a negative length parameter.
	ErrNegativeLength = errors.New("length must not be negative")
	// ErrNoBuilds indicates the store holds no builds yet.
	ErrNoBuilds = errors.New("no builds recorded")
)

// Input types (auto-generate JSON schemas via struct tags).

// BuildInput is the input schema for the issuetrend_build tool.
type BuildInput struct {
	BuildID int64 `json:"build_id,omitempty" jsonschema:"build to show (default: latest)"`
}

// TrendInput is the input schema for the issuetrend_trend tool.
type TrendInput struct {
	Head   int64 `json:"head,omitempty"   jsonschema:"newest build of the trend (default: latest)"`
	Length int   `json:"length,omitempty" jsonschema:"maximum number of builds (default: configured trend length)"`
}

// BuildsInput is the input schema for the issuetrend_builds tool.
type BuildsInput struct{}

// BuildsOutput lists stored build ids.
type BuildsOutput struct {
	Builds []build.ID `json:"builds"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

type handlers struct {
	store       history.Store
	agg         *history.Aggregator
	trendLength int
}

func (h *handlers) handleBuild(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input BuildInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	id, err := h.resolve(ctx, input.BuildID)
	if err != nil {
		return errorResult(err)
	}

	r, err := h.store.Load(ctx, id)
	if err != nil {
		return errorResult(fmt.Errorf("load build %d: %w", id, err))
	}

	var reference *build.Result

	if r.Reference != nil {
		reference, err = h.store.Load(ctx, *r.Reference)
		if err != nil && !errors.Is(err, history.ErrNotFound) {
			return errorResult(fmt.Errorf("load reference %d: %w", *r.Reference, err))
		}
	}

	return jsonResult(report.NewDocument(r, reference))
}

func (h *handlers) handleTrend(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input TrendInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Length < 0 {
		return errorResult(fmt.Errorf("%w: %d", ErrNegativeLength, input.Length))
	}

	head, err := h.resolve(ctx, input.Head)
	if err != nil {
		return errorResult(err)
	}

	length := input.Length
	if length == 0 {
		length = h.trendLength
	}

	points, err := h.agg.Trend(ctx, head, length)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report.Trend{Points: points, Summary: history.Summarize(points)})
}

func (h *handlers) handleBuilds(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	_ BuildsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	ids, err := h.store.IDs(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("list builds: %w", err))
	}

	if ids == nil {
		ids = []build.ID{}
	}

	return jsonResult(BuildsOutput{Builds: ids})
}

// resolve maps a zero id to the latest stored build.
func (h *handlers) resolve(ctx context.Context, id int64) (build.ID, error) {
	if id < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeBuildID, id)
	}

	if id > 0 {
		return id, nil
	}

	latest, ok, err := history.Latest(ctx, h.store, 0)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, ErrNoBuilds
	}

	return latest, nil
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
