package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/jobs"
	"github.com/pagelens/pagelens/kit"
)

// RegisterMCP registers the pagelens tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerCaptureTool(srv)
	s.registerStatusTool(srv)
	s.registerScreenshotsTool(srv)
}

// toolLogging logs every tool invocation with its duration.
func (s *Server) toolLogging(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				s.cfg.Logger.Warn("mcp: tool failed", "tool", name, "elapsed", time.Since(start), "error", err)
				return resp, err
			}
			s.cfg.Logger.Debug("mcp: tool ok", "tool", name, "elapsed", time.Since(start))
			return resp, nil
		}
	}
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

// --- capture ---

type captureReq struct {
	URL   string `json:"url"`
	Crawl bool   `json:"crawl"`
}

func (s *Server) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagelens_capture",
		Description: "Submit a page (or a whole site with crawl=true) for interactive screenshot capture. Returns the job record; poll pagelens_job_status for progress.",
		InputSchema: inputSchema(map[string]any{
			"url":   map[string]any{"type": "string", "description": "Page URL to capture"},
			"crawl": map[string]any{"type": "boolean", "description": "Crawl same-origin links and capture every discovered page"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*captureReq)
		return s.jobs.Submit(ctx, jobs.Request{URL: r.URL, Crawl: r.Crawl})
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r captureReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLogging(tool.Name))(endpoint), decode)
}

// --- job status ---

type jobIDReq struct {
	JobID string `json:"job_id"`
}

func decodeJobID(req *mcp.CallToolRequest) (any, error) {
	var r jobIDReq
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	if r.JobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	return &r, nil
}

func (s *Server) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagelens_job_status",
		Description: "Return a capture job's state and page progress.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job ID returned by pagelens_capture"},
		}, []string{"job_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*jobIDReq)
		job, err := s.jobs.Get(ctx, r.JobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %s not found", r.JobID)
		}
		return job, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLogging(tool.Name))(endpoint), decodeJobID)
}

// --- screenshots ---

func (s *Server) registerScreenshotsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagelens_list_screenshots",
		Description: "List a capture job's screenshots: filenames, source pages, tags and storage paths.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job ID returned by pagelens_capture"},
		}, []string{"job_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*jobIDReq)
		job, err := s.jobs.Get(ctx, r.JobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %s not found", r.JobID)
		}
		shots, err := s.jobs.Screenshots(ctx, r.JobID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"job_id": r.JobID, "screenshots": shots}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLogging(tool.Name))(endpoint), decodeJobID)
}
