// Package snapshot commits and pushes the working tree after a run so the
// dedup file survives between scheduled invocations.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
)

// Runner executes a command in the working directory and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Dir string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Options configures the git snapshot.
type Options struct {
	Paths       []string
	Message     string
	AuthorName  string
	AuthorEmail string
}

// Hook stages, commits and pushes the configured paths.
type Hook struct {
	runner Runner
	opts   Options
	log    logger.Logger
}

// NewHook builds a Hook. A nil runner uses ExecRunner in the current directory.
func NewHook(runner Runner, opts Options, log logger.Logger) *Hook {
	if runner == nil {
		runner = ExecRunner{}
	}
	if len(opts.Paths) == 0 {
		opts.Paths = []string{"."}
	}
	if strings.TrimSpace(opts.Message) == "" {
		opts.Message = "update from robot"
	}
	return &Hook{runner: runner, opts: opts, log: logger.Ensure(log)}
}

// Name identifies the hook in logs.
func (h *Hook) Name() string { return "git-snapshot" }

// AfterRun commits staged changes and pushes them. A commit with nothing to
// commit is not an error; the push is skipped in that case.
func (h *Hook) AfterRun(ctx context.Context) error {
	addArgs := append([]string{"add", "--"}, h.opts.Paths...)
	if out, err := h.git(ctx, addArgs...); err != nil {
		return fmt.Errorf("git add: %w: %s", err, trimOutput(out))
	}

	out, err := h.git(ctx, h.commitArgs()...)
	if err != nil {
		if nothingToCommit(out) {
			h.log.InfoObj("snapshot skipped; nothing to commit", "snapshot", map[string]any{
				"paths": h.opts.Paths,
			})
			return nil
		}
		return fmt.Errorf("git commit: %w: %s", err, trimOutput(out))
	}

	if out, err := h.git(ctx, "push"); err != nil {
		return fmt.Errorf("git push: %w: %s", err, trimOutput(out))
	}

	h.log.InfoObj("snapshot pushed", "snapshot", map[string]any{
		"paths":   h.opts.Paths,
		"message": h.opts.Message,
	})
	return nil
}

// commitArgs sets the author per invocation instead of touching global git config.
func (h *Hook) commitArgs() []string {
	var args []string
	if h.opts.AuthorName != "" {
		args = append(args, "-c", "user.name="+h.opts.AuthorName)
	}
	if h.opts.AuthorEmail != "" {
		args = append(args, "-c", "user.email="+h.opts.AuthorEmail)
	}
	return append(args, "commit", "-m", h.opts.Message)
}

func (h *Hook) git(ctx context.Context, args ...string) ([]byte, error) {
	h.log.DebugObj("running git", "snapshot_git", map[string]any{"args": args})
	return h.runner.Run(ctx, "git", args...)
}

func nothingToCommit(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "nothing to commit") || strings.Contains(s, "no changes added to commit")
}

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
