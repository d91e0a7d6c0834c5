// Package hooks runs the shell commands configured to run after the system
// has been installed and before completion is announced.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/twinaos/installer/internal/logger"
)

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30

// Hook is one post-install command.
type Hook struct {
	Command string `mapstructure:"command" yaml:"command"`
	Timeout int    `mapstructure:"timeout" yaml:"timeout,omitempty"` // seconds, default 30
}

// Variables are expanded in hook commands as {{run_id}}, {{disk}},
// {{username}} and {{hostname}}.
type Variables struct {
	RunID    string
	Disk     string
	Username string
	Hostname string
}

// Execute runs a hook command and returns its output.
// A failing or timed-out command is reported in the output with a nil error;
// only context cancellation is returned as an error.
func Execute(ctx context.Context, hook Hook, workDir string, vars Variables) (string, error) {
	if hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command, vars)
	logger.Debug("Executing hook command: %s", command)

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if execCtx.Err() == context.DeadlineExceeded {
		logger.Warn("Hook command timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %ds]\nPartial output:\n%s", timeout, stdout.String()), nil
	}

	if err != nil {
		logger.Warn("Hook command failed: %v", err)
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n[stderr]\n" + stderr.String()
		}
		return fmt.Sprintf("[Hook command failed: %v]\n%s", err, output), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	logger.Debug("Hook executed successfully, output length: %d bytes", len(output))
	return output, nil
}

// ExecuteAll runs hooks in order and joins their non-empty output.
func ExecuteAll(ctx context.Context, hooks []Hook, workDir string, vars Variables) (string, error) {
	var outputs []string
	for _, h := range hooks {
		out, err := Execute(ctx, h, workDir, vars)
		if err != nil {
			return strings.Join(outputs, "\n"), err
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

// expandVariables substitutes each placeholder with its shell-quoted value so
// user input always lands as a single word.
func expandVariables(command string, vars Variables) string {
	return strings.NewReplacer(
		"{{run_id}}", shellescape.Quote(vars.RunID),
		"{{disk}}", shellescape.Quote(vars.Disk),
		"{{username}}", shellescape.Quote(vars.Username),
		"{{hostname}}", shellescape.Quote(vars.Hostname),
	).Replace(command)
}
