// Package cliexec resolves and invokes provider CLIs, classifying
// subprocess failures into the shared fetch error taxonomy.
package cliexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/nyxkrage/quotabar/pkg/execfind"
	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/shellenv"
)

// ShellCaptureTimeout bounds the one-time login-shell PATH capture.
// Slow profile scripts degrade to the plain resolution chain, never
// block a fetch forever.
const ShellCaptureTimeout = 5 * time.Second

// Runner locates and executes one tool. The zero value is not usable;
// set Tool at minimum.
type Runner struct {
	// Tool is the executable name searched on the resolution chain.
	Tool string
	// OverrideEnvVar names the env var holding an explicit executable
	// path, highest priority when it points at something executable.
	OverrideEnvVar string
	// Shell is the shared login-shell PATH cache; nil skips that rung.
	Shell *shellenv.Cache
	// Env overrides the process environment in tests.
	Env map[string]string
}

// Output resolves the tool and runs it with args, returning stdout.
// The subprocess is killed when ctx expires.
func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	path, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", r.Tool, provider.ErrSubprocessTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := bytes.TrimSpace(stderr.Bytes())
			return nil, fmt.Errorf("%s exited %d: %s", r.Tool, exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("%s: %w: %v", r.Tool, provider.ErrLaunchFailed, err)
	}

	return stdout.Bytes(), nil
}

// resolve waits for the shared shell-PATH capture (bounded by ctx) and
// walks the execfind chain.
func (r *Runner) resolve(ctx context.Context) (string, error) {
	var shellPath []string
	if r.Shell != nil {
		ch := make(chan []string, 1)
		r.Shell.CaptureOnce("", ShellCaptureTimeout, func(value []string) { ch <- value })
		select {
		case shellPath = <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	env := r.Env
	if env == nil {
		env = execfind.Environ()
	}
	home, _ := os.UserHomeDir()

	path := execfind.Resolve(r.Tool, r.OverrideEnvVar, env, shellPath, home)
	if path == "" {
		return "", fmt.Errorf("%s: %w", r.Tool, provider.ErrMissingExecutable)
	}
	return path, nil
}
