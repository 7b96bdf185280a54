package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/jobs"
)

var testMCPImpl = &mcp.Implementation{Name: "pagelens-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	s := testServer(t)

	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		msg := "tool error"
		if len(result.Content) > 0 {
			if tc, ok := result.Content[0].(*mcp.TextContent); ok {
				msg = tc.Text
			}
		}
		return "", errors.New(msg)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

func TestMCP_CaptureAndStatus(t *testing.T) {
	session := mcpSession(t)

	text, err := mcpCallTool(t, session, "pagelens_capture", map[string]any{
		"url": "https://example.com",
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	var job jobs.Job
	if err := json.Unmarshal([]byte(text), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("no job id returned")
	}

	text, err = mcpCallTool(t, session, "pagelens_job_status", map[string]any{
		"job_id": job.ID,
	})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(text, job.ID) {
		t.Errorf("status text missing job id: %s", text)
	}
}

func TestMCP_ValidationErrors(t *testing.T) {
	session := mcpSession(t)

	if _, err := mcpCallTool(t, session, "pagelens_capture", map[string]any{}); err == nil {
		t.Error("capture without url should fail")
	}
	if _, err := mcpCallTool(t, session, "pagelens_job_status", map[string]any{"job_id": "nope"}); err == nil {
		t.Error("unknown job should fail")
	}
	if _, err := mcpCallTool(t, session, "pagelens_list_screenshots", map[string]any{}); err == nil {
		t.Error("list without job_id should fail")
	}
}
