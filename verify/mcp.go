package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voilier/constat/gate"
	"github.com/voilier/constat/imgdiff"
	"github.com/voilier/constat/kit"
	"github.com/voilier/constat/runlog"
)

// Tooling is the MCP surface of the pipeline: an agent drives
// verification runs, standalone diffs, offline rechecks, and the human
// gate as tools over one session.
type Tooling struct {
	Logger  *slog.Logger
	History *runlog.Store

	// SignalDir is where the pause gate looks for operator files.
	// Empty means the current working directory.
	SignalDir string

	// GatePoll overrides the gate's resume poll interval. Zero keeps
	// the gate default.
	GatePoll time.Duration

	// ToolTimeout bounds each tool call except constat_pause, which
	// waits on a human operator. Zero means no limit.
	ToolTimeout time.Duration

	// NewBrowser builds the browser for a verification run. Nil means
	// a locally launched headless Chrome. Tests substitute a fake.
	NewBrowser func(BrowserConfig, *slog.Logger) Browser
}

// RegisterMCP registers all verification tools on an MCP server.
func (tl *Tooling) RegisterMCP(srv *mcp.Server) {
	tl.registerVerify(srv)
	tl.registerDiff(srv)
	tl.registerRecheck(srv)
	tl.registerPause(srv)
	tl.registerRuns(srv)
}

func (tl *Tooling) logger() *slog.Logger {
	if tl.Logger != nil {
		return tl.Logger
	}
	return slog.Default()
}

func (tl *Tooling) browser(cfg BrowserConfig) Browser {
	if tl.NewBrowser != nil {
		return tl.NewBrowser(cfg, tl.logger())
	}
	return NewChromeBrowser(cfg, tl.logger())
}

// middleware is the endpoint stack every tool runs behind: call
// logging, an optional deadline, and panic recovery innermost so a
// panicking handler cannot take the MCP session down.
func (tl *Tooling) middleware(name string) kit.Middleware {
	mws := []kit.Middleware{kit.Logging(tl.logger(), name)}
	if tl.ToolTimeout > 0 {
		mws = append(mws, kit.Timeout(tl.ToolTimeout))
	}
	mws = append(mws, kit.Recovery(tl.logger()))
	return kit.Chain(mws...)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (tl *Tooling) registerVerify(srv *mcp.Server) {
	type req struct {
		BaseURL       string  `json:"base_url"`
		Routes        string  `json:"routes"`
		OutDir        string  `json:"out_dir"`
		Asserts       string  `json:"asserts"`
		DesignDir     string  `json:"design_dir"`
		DiffTolerance float64 `json:"diff_tolerance"`
		Stealth       bool    `json:"stealth"`
	}

	tool := &mcp.Tool{
		Name:        "constat_verify",
		Description: "Load routes of a running preview in a headless browser, evaluate assertions, and capture screenshot plus HTML artifacts per route",
		InputSchema: inputSchema(map[string]any{
			"base_url":       map[string]any{"type": "string", "description": "Base URL of the preview server"},
			"routes":         map[string]any{"type": "string", "description": "Comma-separated routes, default '/'"},
			"out_dir":        map[string]any{"type": "string", "description": "Artifact output directory"},
			"asserts":        map[string]any{"type": "string", "description": "Path to a YAML/JSON assertion document"},
			"design_dir":     map[string]any{"type": "string", "description": "Directory of reference images for visual diffs"},
			"diff_tolerance": map[string]any{"type": "number", "description": "Per-channel diff tolerance fraction"},
			"stealth":        map[string]any{"type": "boolean", "description": "Apply anti-detection page setup"},
		}, []string{"base_url"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		cfg := &Config{
			BaseURL:       p.BaseURL,
			Routes:        p.Routes,
			OutDir:        p.OutDir,
			AssertsPath:   p.Asserts,
			DesignDir:     p.DesignDir,
			DiffTolerance: p.DiffTolerance,
			Browser:       BrowserConfig{Stealth: p.Stealth},
		}
		cfg.applyDefaults()

		var opts []Option
		if tl.History != nil {
			opts = append(opts, WithHistory(tl.History))
		}
		runner := NewRunner(cfg, tl.browser(cfg.Browser), tl.logger(), opts...)
		return runner.Run(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, tl.middleware(tool.Name)(endpoint), decode)
}

func (tl *Tooling) registerDiff(srv *mcp.Server) {
	type req struct {
		Expected  string  `json:"expected"`
		Actual    string  `json:"actual"`
		DiffOut   string  `json:"diff_out"`
		ReportOut string  `json:"report_out"`
		Tolerance float64 `json:"tolerance"`
	}

	tool := &mcp.Tool{
		Name:        "constat_diff",
		Description: "Pixel-diff two PNG images, writing a highlighted diff image and a JSON report",
		InputSchema: inputSchema(map[string]any{
			"expected":   map[string]any{"type": "string", "description": "Path to the reference PNG"},
			"actual":     map[string]any{"type": "string", "description": "Path to the captured PNG"},
			"diff_out":   map[string]any{"type": "string", "description": "Output path for the diff image"},
			"report_out": map[string]any{"type": "string", "description": "Output path for the JSON report"},
			"tolerance":  map[string]any{"type": "number", "description": "Per-channel tolerance fraction, default 0.1"},
		}, []string{"expected", "actual", "diff_out", "report_out"}),
	}

	endpoint := func(_ context.Context, r any) (any, error) {
		p := r.(*req)
		report, err := imgdiff.CompareFiles(p.Expected, p.Actual, p.DiffOut, p.ReportOut,
			imgdiff.Options{Tolerance: p.Tolerance})
		if err != nil {
			return nil, err
		}
		return report, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, tl.middleware(tool.Name)(endpoint), decode)
}

func (tl *Tooling) registerRecheck(srv *mcp.Server) {
	type req struct {
		OutDir  string `json:"out_dir"`
		Asserts string `json:"asserts"`
		Routes  string `json:"routes"`
	}

	tool := &mcp.Tool{
		Name:        "constat_recheck",
		Description: "Re-evaluate an assertion document against the HTML snapshots of a previous run, without a browser",
		InputSchema: inputSchema(map[string]any{
			"out_dir": map[string]any{"type": "string", "description": "Artifact directory of the previous run"},
			"asserts": map[string]any{"type": "string", "description": "Path to a YAML/JSON assertion document"},
			"routes":  map[string]any{"type": "string", "description": "Comma-separated routes, default '/'"},
		}, []string{"out_dir"}),
	}

	endpoint := func(_ context.Context, r any) (any, error) {
		p := r.(*req)
		return Recheck(p.OutDir, p.Asserts, p.Routes, tl.logger())
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, tl.middleware(tool.Name)(endpoint), decode)
}

func (tl *Tooling) registerPause(srv *mcp.Server) {
	type req struct {
		Steps     string `json:"steps"`
		RunDir    string `json:"run_dir"`
		TimeoutMS int64  `json:"timeout_ms"`
	}
	type resp struct {
		Resumed   bool   `json:"resumed"`
		StepsPath string `json:"steps_path"`
	}

	tool := &mcp.Tool{
		Name:        "constat_pause",
		Description: "Write manual admin steps to a file, pause, and block until the operator signals continuation",
		InputSchema: inputSchema(map[string]any{
			"steps":      map[string]any{"type": "string", "description": "Markdown describing the manual steps"},
			"run_dir":    map[string]any{"type": "string", "description": "Run directory recorded as paused"},
			"timeout_ms": map[string]any{"type": "integer", "description": "Maximum wait in ms, 0 = no limit"},
		}, []string{"steps"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if p.RunDir == "" {
			p.RunDir = tl.SignalDir
		}
		gopts := []gate.Option{gate.WithLogger(tl.logger())}
		if tl.GatePoll > 0 {
			gopts = append(gopts, gate.WithPollInterval(tl.GatePoll))
		}
		g := gate.New(tl.SignalDir, p.RunDir, gopts...)
		if err := g.Pause(p.Steps); err != nil {
			return nil, err
		}
		if p.TimeoutMS > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMS)*time.Millisecond)
			defer cancel()
		}
		if err := g.WaitForResume(ctx); err != nil {
			return nil, err
		}
		return &resp{Resumed: true, StepsPath: g.StepsPath()}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	// The pause tool waits on a human operator, so the shared deadline
	// does not apply; the timeout_ms parameter bounds the wait instead.
	wrapped := kit.Chain(kit.Logging(tl.logger(), tool.Name), kit.Recovery(tl.logger()))(endpoint)
	kit.RegisterMCPTool(srv, tool, wrapped, decode)
}

func (tl *Tooling) registerRuns(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "constat_runs",
		Description: "List recent verification runs from the run history, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum number of runs, default 50"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		if tl.History == nil {
			return nil, fmt.Errorf("verify: run history is not configured")
		}
		p := r.(*req)
		return tl.History.ListRuns(ctx, p.Limit)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, tl.middleware(tool.Name)(endpoint), decode)
}
