package domsnap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the capture tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCaptureTool(srv)
	s.registerRecentTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// registerTool adapts a decode/endpoint pair to the SDK handler shape.
// Tool-level failures are reported through the result, never as a
// protocol error.
func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(ctx context.Context, r any) (any, error), decode func(*mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (s *Service) registerCaptureTool(srv *mcp.Server) {
	type req struct {
		URL        string `json:"url"`
		OutputPath string `json:"output_path"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		FullPage   *bool  `json:"full_page"`
		Format     string `json:"format"`
		Quality    int    `json:"quality"`
		WaitUntil  string `json:"wait_until"`
		TimeoutMs  int    `json:"timeout_ms"`
	}

	tool := &mcp.Tool{
		Name:        "domsnap_capture",
		Description: "Capture a clean full-page screenshot of a URL and write it to a file",
		InputSchema: inputSchema(map[string]any{
			"url":         map[string]any{"type": "string", "description": "Page to capture"},
			"output_path": map[string]any{"type": "string", "description": "File to write the image to"},
			"width":       map[string]any{"type": "integer", "description": "Viewport width in px"},
			"height":      map[string]any{"type": "integer", "description": "Viewport height in px"},
			"full_page":   map[string]any{"type": "boolean", "description": "Capture the whole document, not just the viewport"},
			"format":      map[string]any{"type": "string", "description": "Image format: png, jpeg"},
			"quality":     map[string]any{"type": "integer", "description": "JPEG quality 1-100"},
			"wait_until":  map[string]any{"type": "string", "description": "Navigation wait: load, domcontentloaded, networkidle0, networkidle2"},
			"timeout_ms":  map[string]any{"type": "integer", "description": "Per-capture timeout in ms"},
		}, []string{"url", "output_path"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if p.OutputPath == "" {
			return nil, fmt.Errorf("%w: output_path is required", ErrInvalidRequest)
		}
		cr := &CaptureRequest{
			URL:        p.URL,
			Width:      p.Width,
			Height:     p.Height,
			FullPage:   p.FullPage,
			Format:     Format(p.Format),
			Quality:    p.Quality,
			WaitUntil:  WaitUntil(p.WaitUntil),
			TimeoutMs:  p.TimeoutMs,
			OutputPath: p.OutputPath,
		}
		img, err := s.Capture(ctx, cr)
		if err != nil {
			return nil, err
		}
		// Capture resolves a confined output path in place; report where
		// the file actually landed.
		return map[string]any{
			"path":      cr.OutputPath,
			"format":    string(img.Format),
			"byte_size": len(img.Data),
		}, nil
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

func (s *Service) registerRecentTool(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "domsnap_recent",
		Description: "List recent captures recorded in the journal",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Recent(ctx, p.Limit)
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &p, nil
	}

	registerTool(srv, tool, endpoint, decode)
}
