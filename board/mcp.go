package board

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/loadwatch/kit"
)

// RegisterMCP registers all loadwatch tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerStatus(srv)
	s.registerRecentLoads(srv)
	s.registerUpdateFilters(srv)
	s.registerScanNow(srv)
	s.registerStart(srv)
	s.registerStop(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// decodeInto builds a decode function for a typed request. Tools with no
// arguments receive an empty payload, which is not an error.
func decodeInto[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		p := new(T)
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: p}, nil
	}
}

// --- Session control ---

func (s *Service) registerStart(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "loadwatch_start",
		Description: "Start watching the load board. Fails if a session is already running or the page is logged out.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s.Status(), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}]())
}

func (s *Service) registerStop(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "loadwatch_stop",
		Description: "Stop the running watch session and clear the session's seen-load cache",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.Stop(); err != nil {
			return nil, err
		}
		return map[string]string{"status": "stopped"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}]())
}

func (s *Service) registerScanNow(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "loadwatch_scan_now",
		Description: "Trigger an immediate board scan, skipping the current polling wait",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.RunCycleNow(); err != nil {
			return nil, err
		}
		return map[string]string{"status": "scan scheduled"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}]())
}

// --- Observation ---

func (s *Service) registerStatus(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "loadwatch_status",
		Description: "Get the watch session state: running flag, polling interval, cycle counters, tracked loads",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Status(), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}]())
}

func (s *Service) registerRecentLoads(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "loadwatch_recent_loads",
		Description: "List recently emitted profitable loads from the journal, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.RecentEmitted(ctx, p.Limit)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req]())
}

// --- Configuration ---

func (s *Service) registerUpdateFilters(srv *mcp.Server) {
	type req struct {
		MinRatePerMile   float64  `json:"min_rate_per_mile"`
		MaxDeadheadRatio float64  `json:"max_deadhead_ratio"`
		MinDistanceMiles float64  `json:"min_distance_miles"`
		MaxDistanceMiles float64  `json:"max_distance_miles"`
		Regions          []string `json:"regions"`
	}

	tool := &mcp.Tool{
		Name:        "loadwatch_update_filters",
		Description: "Replace the profitability thresholds and lane filters. Known loads stay suppressed.",
		InputSchema: inputSchema(map[string]any{
			"min_rate_per_mile":  map[string]any{"type": "number", "description": "Gate threshold in USD/mile (default 2.50)"},
			"max_deadhead_ratio": map[string]any{"type": "number", "description": "Gate threshold (default 0.25)"},
			"min_distance_miles": map[string]any{"type": "number", "description": "0 = no minimum"},
			"max_distance_miles": map[string]any{"type": "number", "description": "0 = no maximum"},
			"regions":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Lane endpoint allow-list; empty = all"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		f := FilterConfig{
			MinRatePerMile:   p.MinRatePerMile,
			MaxDeadheadRatio: p.MaxDeadheadRatio,
			MinDistanceMiles: p.MinDistanceMiles,
			MaxDistanceMiles: p.MaxDistanceMiles,
			Regions:          p.Regions,
		}
		if err := s.UpdateFilters(f); err != nil {
			return nil, err
		}
		return map[string]string{"status": "filters updated"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req]())
}
