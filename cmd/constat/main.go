// Command constat verifies a running web preview: it loads routes in a
// headless browser, evaluates assertions, and captures screenshot plus
// HTML artifacts per route.
//
// Usage:
//
//	constat -base-url http://localhost:3000 -routes "/,/pricing"
//	constat -config constat.yaml
//	constat -diff-expected ref.png -diff-actual shot.png
//	constat -recheck verify_out -asserts asserts.yaml
//	constat -serve -artifacts-dir verify_out -runlog runs.db
//	constat -mcp
//
// Exit codes: 0 all checks passed, 1 assertion or visual failure,
// 2 configuration error.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voilier/constat/gate"
	"github.com/voilier/constat/idgen"
	"github.com/voilier/constat/imgdiff"
	"github.com/voilier/constat/runlog"
	"github.com/voilier/constat/serve"
	"github.com/voilier/constat/shield"
	"github.com/voilier/constat/verify"
)

const version = "1.0.0"

func main() {
	// Verification run.
	baseURL := flag.String("base-url", env("CONSTAT_BASE_URL", ""), "base URL of the preview server")
	routes := flag.String("routes", env("CONSTAT_ROUTES", "/"), "comma-separated routes to verify")
	outDir := flag.String("out-dir", env("CONSTAT_OUT_DIR", "verify_out"), "artifact output directory")
	asserts := flag.String("asserts", env("CONSTAT_ASSERTS", ""), "path to a YAML/JSON assertion document")
	designDir := flag.String("design-dir", env("CONSTAT_DESIGN_DIR", ""), "directory of reference images for visual diffs")
	diffTolerance := flag.Float64("diff-tolerance", 0, "per-channel diff tolerance fraction (0 = default)")
	configPath := flag.String("config", "", "path to a constat.yaml config file")
	runDirs := flag.Bool("run-dirs", false, "write artifacts into a per-run subdirectory of out-dir")
	runlogPath := flag.String("runlog", env("CONSTAT_RUNLOG", ""), "path to the run-history SQLite database")

	// Browser.
	remote := flag.String("remote", env("CONSTAT_CHROME_WS", ""), "WebSocket URL of an external Chrome (empty = launch)")
	stealth := flag.Bool("stealth", false, "apply anti-detection page setup")
	navTimeout := flag.Duration("nav-timeout", 60*time.Second, "per-route navigation timeout")
	blockResources := flag.String("block-resources", "", "comma-separated resource types to block (fonts, media)")

	// Standalone differ.
	diffExpected := flag.String("diff-expected", "", "reference PNG for a standalone diff")
	diffActual := flag.String("diff-actual", "", "captured PNG for a standalone diff")
	diffOut := flag.String("diff-out", "diff.png", "diff image output path")
	diffReport := flag.String("diff-report", "diff.json", "diff report output path")

	// Offline recheck.
	recheckDir := flag.String("recheck", "", "re-evaluate assertions against the snapshots in this directory")

	// Artifact server.
	serveMode := flag.Bool("serve", false, "serve artifacts and run history over HTTP")
	addr := flag.String("addr", env("CONSTAT_ADDR", ":8780"), "listen address for -serve")
	artifactsDir := flag.String("artifacts-dir", "", "artifact root for -serve (default: out-dir)")
	authUser := flag.String("auth-user", env("CONSTAT_AUTH_USER", ""), "basic auth user for -serve")
	authHash := flag.String("auth-hash", env("CONSTAT_AUTH_HASH", ""), "bcrypt password hash for -serve")
	hashPassword := flag.Bool("hash-password", false, "read a password on stdin and print its bcrypt hash")

	// MCP.
	mcpMode := flag.Bool("mcp", false, "serve verification tools over MCP on stdin/stdout")
	toolTimeout := flag.Duration("tool-timeout", 0, "per-tool deadline for -mcp, except the pause tool (0 = no limit)")
	signalDir := flag.String("signal-dir", env("CONSTAT_SIGNAL_DIR", "."), "directory watched for pause/resume files")

	logLevel := flag.String("log-level", env("CONSTAT_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &cliConfig{
		baseURL:        *baseURL,
		routes:         *routes,
		outDir:         *outDir,
		asserts:        *asserts,
		designDir:      *designDir,
		diffTolerance:  *diffTolerance,
		configPath:     *configPath,
		runDirs:        *runDirs,
		runlogPath:     *runlogPath,
		remote:         *remote,
		stealth:        *stealth,
		navTimeout:     *navTimeout,
		blockResources: *blockResources,
		addr:           *addr,
		artifactsDir:   *artifactsDir,
		authUser:       *authUser,
		authHash:       *authHash,
		signalDir:      *signalDir,
		toolTimeout:    *toolTimeout,
	}

	var err error
	switch {
	case *hashPassword:
		err = runHashPassword()
	case *diffExpected != "" || *diffActual != "":
		err = runDiff(logger, *diffExpected, *diffActual, *diffOut, *diffReport, *diffTolerance)
	case *recheckDir != "":
		err = runRecheck(logger, *recheckDir, *asserts, *routes)
	case *serveMode:
		err = runServe(ctx, logger, cfg)
	case *mcpMode:
		err = runMCP(ctx, logger, cfg)
	default:
		err = runVerify(ctx, logger, cfg)
	}

	if err == nil {
		return
	}
	if errors.Is(err, verify.ErrConfig) {
		logger.Error("constat: configuration error", "error", err)
		os.Exit(2)
	}
	if errors.Is(err, errChecksFailed) {
		os.Exit(1)
	}
	logger.Error("constat: fatal", "error", err)
	os.Exit(1)
}

// errChecksFailed maps a completed run with failures to exit code 1
// without a second fatal log line.
var errChecksFailed = errors.New("checks failed")

type cliConfig struct {
	baseURL        string
	routes         string
	outDir         string
	asserts        string
	designDir      string
	diffTolerance  float64
	configPath     string
	runDirs        bool
	runlogPath     string
	remote         string
	stealth        bool
	navTimeout     time.Duration
	blockResources string
	addr           string
	artifactsDir   string
	authUser       string
	authHash       string
	signalDir      string
	toolTimeout    time.Duration
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *cliConfig) verifyConfig() (*verify.Config, error) {
	if c.configPath != "" {
		return verify.LoadConfigFile(c.configPath)
	}
	cfg := &verify.Config{
		BaseURL:       c.baseURL,
		Routes:        c.routes,
		OutDir:        c.outDir,
		AssertsPath:   c.asserts,
		DesignDir:     c.designDir,
		DiffTolerance: c.diffTolerance,
		Browser: verify.BrowserConfig{
			Remote:     c.remote,
			Stealth:    c.stealth,
			NavTimeout: c.navTimeout,
		},
	}
	if c.blockResources != "" {
		for _, t := range strings.Split(c.blockResources, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.Browser.BlockResources = append(cfg.Browser.BlockResources, t)
			}
		}
	}
	return cfg, nil
}

func (c *cliConfig) history(logger *slog.Logger) *runlog.Store {
	if c.runlogPath == "" {
		return nil
	}
	store, err := runlog.Open(c.runlogPath)
	if err != nil {
		logger.Warn("constat: run history unavailable", "path", c.runlogPath, "error", err)
		return nil
	}
	return store
}

func runVerify(ctx context.Context, logger *slog.Logger, c *cliConfig) error {
	cfg, err := c.verifyConfig()
	if err != nil {
		return err
	}

	opts := []verify.Option{}
	if c.runDirs {
		runID := idgen.RunID()
		cfg.OutDir = filepath.Join(cfg.OutDir, runID)
		opts = append(opts, verify.WithRunID(func() string { return runID }))
	}
	if history := c.history(logger); history != nil {
		defer history.Close()
		opts = append(opts, verify.WithHistory(history))
	}

	runner := verify.NewRunner(cfg,
		verify.NewChromeBrowser(cfg.Browser, logger), logger, opts...)
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	json.NewEncoder(os.Stdout).Encode(result)
	if !result.OK() {
		return errChecksFailed
	}
	return nil
}

func runDiff(logger *slog.Logger, expected, actual, diffOut, reportOut string, tolerance float64) error {
	if expected == "" || actual == "" {
		return fmt.Errorf("%w: -diff-expected and -diff-actual are both required", verify.ErrConfig)
	}
	report, err := imgdiff.CompareFiles(expected, actual, diffOut, reportOut,
		imgdiff.Options{Tolerance: tolerance})
	if err != nil {
		return err
	}
	json.NewEncoder(os.Stdout).Encode(report)
	if !report.OK {
		return errChecksFailed
	}
	logger.Info("constat: diff done",
		"mismatch_ratio", report.MismatchRatio, "report", reportOut)
	return nil
}

func runRecheck(logger *slog.Logger, outDir, asserts, routes string) error {
	result, err := verify.Recheck(outDir, asserts, routes, logger)
	if err != nil {
		return err
	}
	json.NewEncoder(os.Stdout).Encode(result)
	if !result.OK() {
		return errChecksFailed
	}
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, c *cliConfig) error {
	artifacts := c.artifactsDir
	if artifacts == "" {
		artifacts = c.outDir
	}

	var history *runlog.Store
	if history = c.history(logger); history != nil {
		defer history.Close()
	}

	g := gate.New(c.signalDir, artifacts, gate.WithLogger(logger))
	srv := serve.New(serve.Config{
		Addr:         c.addr,
		ArtifactsDir: artifacts,
		AuthUser:     c.authUser,
		AuthHash:     c.authHash,
	}, history, g, logger)
	return srv.ListenAndServe(ctx)
}

func runMCP(ctx context.Context, logger *slog.Logger, c *cliConfig) error {
	var history *runlog.Store
	if history = c.history(logger); history != nil {
		defer history.Close()
	}

	tooling := &verify.Tooling{
		Logger:      logger,
		History:     history,
		SignalDir:   c.signalDir,
		ToolTimeout: c.toolTimeout,
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "constat",
		Version: version,
	}, nil)
	tooling.RegisterMCP(srv)

	transport := &mcp.IOTransport{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
	logger.Info("constat: MCP serving on stdio")
	return srv.Run(ctx, transport)
}

func runHashPassword() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	hash, err := shield.HashPassword(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
