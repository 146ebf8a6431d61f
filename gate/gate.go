// Package gate implements the pause/resume contract between the
// verification pipeline and a human operator.
//
// The run is a two-state machine: running, or paused waiting for manual
// admin steps that file edits cannot perform (uploading an asset,
// changing a setting in an external admin surface). Both the pause
// marker and the resume signal live on the filesystem, so the state
// survives process restarts and a human can release the gate with a
// one-line file edit. No RPC, no shared memory.
//
// Pausing writes a human-readable steps document into the run's artifact
// directory. Resuming happens when a designated plain-text signal file
// contains the resume keyword; the file is cleared on consumption so the
// next pause starts closed. After a resume the caller re-runs
// verification from the top, since admin changes can affect any route.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State is the current gate state.
type State int

const (
	StateRunning State = iota
	StatePaused
)

func (s State) String() string {
	if s == StatePaused {
		return "paused"
	}
	return "running"
}

const (
	// StepsFile is the document written into the run directory on pause.
	StepsFile = "admin_steps.md"

	// SignalFile is the plain-text file polled for the resume keyword.
	SignalFile = "continue.txt"

	// ResumeKeyword releases a paused gate when it appears in SignalFile.
	// Matching is case-insensitive substring.
	ResumeKeyword = "continue"
)

// DefaultPollInterval is how often the signal file is checked.
const DefaultPollInterval = 2 * time.Second

// Gate coordinates one pause/resume cycle.
type Gate struct {
	signalDir string
	runDir    string
	poll      time.Duration
	logger    *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithPollInterval overrides the signal polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.poll = d
		}
	}
}

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate. signalDir holds the resume signal file; runDir is
// the current run's artifact directory where the steps document goes.
func New(signalDir, runDir string, opts ...Option) *Gate {
	g := &Gate{
		signalDir: signalDir,
		runDir:    runDir,
		poll:      DefaultPollInterval,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Pause writes the admin-steps document and moves the gate to paused.
// steps must name the exact manual actions required.
func (g *Gate) Pause(steps string) error {
	steps = strings.TrimSpace(steps)
	if steps == "" {
		return fmt.Errorf("gate: admin steps are required to pause")
	}
	if err := os.MkdirAll(g.runDir, 0o755); err != nil {
		return fmt.Errorf("gate: create run dir: %w", err)
	}
	path := filepath.Join(g.runDir, StepsFile)
	if err := os.WriteFile(path, []byte(steps+"\n"), 0o644); err != nil {
		return fmt.Errorf("gate: write steps: %w", err)
	}
	g.logger.Info("gate: paused for admin steps", "steps_file", path)
	return nil
}

// State derives the current state from the filesystem: paused iff the
// steps document exists in the run directory. Correct after a restart
// because nothing is held in memory.
func (g *Gate) State() State {
	if _, err := os.Stat(filepath.Join(g.runDir, StepsFile)); err == nil {
		return StatePaused
	}
	return StateRunning
}

// StepsPath returns the location of the steps document for this run.
func (g *Gate) StepsPath() string {
	return filepath.Join(g.runDir, StepsFile)
}

// WaitForResume blocks until the signal file contains the resume keyword
// or the context is cancelled. On resume the signal file is cleared and
// the steps document is removed, returning the gate to running.
func (g *Gate) WaitForResume(ctx context.Context) error {
	signal := filepath.Join(g.signalDir, SignalFile)
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		if g.consumeSignal(signal) {
			g.logger.Info("gate: resume signal received", "signal", signal)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gate: wait for resume: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// consumeSignal reports whether the resume keyword is present, clearing
// the file when it is.
func (g *Gate) consumeSignal(signal string) bool {
	data, err := os.ReadFile(signal)
	if err != nil {
		return false
	}
	if !strings.Contains(strings.ToLower(string(data)), ResumeKeyword) {
		return false
	}
	// Reset for the next pause. Best effort: a read-only signal file
	// still releases the gate.
	if err := os.WriteFile(signal, nil, 0o644); err != nil {
		g.logger.Warn("gate: clear signal failed", "error", err)
	}
	if err := os.Remove(filepath.Join(g.runDir, StepsFile)); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("gate: remove steps document failed", "error", err)
	}
	return true
}
