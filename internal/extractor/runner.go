package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Process is a started extractor subprocess. Stdout and stderr are owned by
// the caller and both must be fully consumed before Wait.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
	Kill() error
}

// Runner spawns extractor subprocesses. The exec-backed implementation is the
// only one used in production; tests inject fakes to script subprocess
// behavior without a real binary.
type Runner interface {
	// Run executes the extractor to completion and returns its stdout.
	// Non-zero exits surface as an error carrying the captured stderr.
	Run(ctx context.Context, args ...string) ([]byte, error)
	// Start launches the extractor and hands the live process to the caller.
	Start(ctx context.Context, args ...string) (Process, error)
}

type execRunner struct {
	binary string
}

// NewRunner returns a Runner that invokes the given extractor binary.
func NewRunner(binary string) Runner {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &execRunner{binary: binary}
}

func (r *execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", r.binary, err, firstStderrLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (r *execRunner) Start(ctx context.Context, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}
	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// firstStderrLine extracts the most useful diagnostic line: extractor errors
// are prefixed "ERROR:"; otherwise the first non-empty line wins.
func firstStderrLine(stderr string) string {
	var first string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	if first == "" {
		return "no diagnostic output"
	}
	return first
}
