package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mediadrop/internal/domain"
)

// progressRe matches the extractor's textual progress reports, e.g.
// "[download]  42.5% of 10.00MiB at 1.20MiB/s ETA 00:05".
var progressRe = regexp.MustCompile(`\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

const stderrCaptureLimit = 32 << 10

// Supervisor owns the lifecycle of download-mode extractor subprocesses:
// exactly one subprocess per job, killed on cancellation or when the hard
// wall-clock ceiling is hit, file descriptors closed on every exit path.
type Supervisor struct {
	runner      Runner
	hardTimeout time.Duration
	logger      zerolog.Logger
}

// NewSupervisor builds a supervisor. hardTimeout is the per-job wall-clock
// ceiling; stalled upstream extraction beyond it is a reported error, not a
// silent drop.
func NewSupervisor(runner Runner, hardTimeout time.Duration, logger zerolog.Logger) *Supervisor {
	if hardTimeout <= 0 {
		hardTimeout = 30 * time.Minute
	}
	return &Supervisor{
		runner:      runner,
		hardTimeout: hardTimeout,
		logger:      logger.With().Str("component", "supervisor").Logger(),
	}
}

// RunToFile spawns the extractor in to-disk mode and returns its event
// stream: progress percentages while downloading, then exactly one terminal
// completed or error event, after which the channel closes. The output
// artifact is dir/base.<ext> with the extension chosen by the extractor; a
// clean exit without such an artifact is an error, never a success.
func (s *Supervisor) RunToFile(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile, selector, dir, base string) <-chan domain.ProgressEvent {
	events := make(chan domain.ProgressEvent, 16)

	go func() {
		defer close(events)

		runCtx, cancel := context.WithTimeout(ctx, s.hardTimeout)
		defer cancel()

		args := FileArgs(ref, profile, selector, OutputTemplate(dir, base))
		proc, err := s.runner.Start(runCtx, args...)
		if err != nil {
			events <- errorEvent(Classify(err))
			return
		}
		killOnDone := watchdog(runCtx, proc)
		defer killOnDone()

		var stderr string
		g := new(errgroup.Group)
		g.Go(func() error {
			s.pumpProgress(proc.Stdout(), events)
			return nil
		})
		g.Go(func() error {
			stderr = captureStderr(proc.Stderr())
			return nil
		})
		g.Wait()
		waitErr := proc.Wait()

		if waitErr != nil {
			events <- errorEvent(s.classifyExit(runCtx, waitErr, stderr))
			return
		}

		path, err := findArtifact(dir, base)
		if err != nil {
			s.logger.Error().Str("dir", dir).Str("base", base).Msg("extractor exited clean but artifact is missing")
			events <- errorEvent(err)
			return
		}
		events <- domain.ProgressEvent{
			Type:     domain.EventCompleted,
			Progress: 100,
			FilePath: path,
			FileName: filepath.Base(path),
		}
	}()

	return events
}

// RunToStdout spawns the extractor in streaming mode and copies its stdout to
// sink as bytes arrive. Writes to sink backpressure the subprocess through
// the pipe; nothing is buffered beyond the copy window. Stderr is collected
// for diagnostics only. Cancelling ctx (client disconnect) kills the
// subprocess.
func (s *Supervisor) RunToStdout(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile, selector string, sink io.Writer) (written int64, err error) {
	runCtx, cancel := context.WithTimeout(ctx, s.hardTimeout)
	defer cancel()

	args := StdoutArgs(ref, profile, selector)
	proc, startErr := s.runner.Start(runCtx, args...)
	if startErr != nil {
		return 0, Classify(startErr)
	}
	killOnDone := watchdog(runCtx, proc)
	defer killOnDone()

	var stderr string
	var copyErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		written, copyErr = io.Copy(sink, proc.Stdout())
		if copyErr != nil {
			// The client went away; stop the upstream work immediately
			// instead of letting the pipe fill.
			proc.Kill()
		}
		return nil
	})
	g.Go(func() error {
		stderr = captureStderr(proc.Stderr())
		return nil
	})
	g.Wait()
	waitErr := proc.Wait()

	if copyErr != nil {
		return written, fmt.Errorf("client write: %w", copyErr)
	}
	if waitErr != nil {
		return written, s.classifyExit(runCtx, waitErr, stderr)
	}
	return written, nil
}

// pumpProgress reads the extractor's stdout line by line and forwards parsed
// percentages. Unparseable lines are skipped.
func (s *Supervisor) pumpProgress(r io.Reader, events chan<- domain.ProgressEvent) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 64<<10)
	last := -1
	for scanner.Scan() {
		pct, ok := parseProgressLine(scanner.Text())
		if !ok || pct == last {
			continue
		}
		last = pct
		events <- domain.ProgressEvent{Type: domain.EventProgress, Progress: pct}
	}
}

// parseProgressLine extracts the integer percentage from one progress line.
func parseProgressLine(line string) (int, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f < 0 || f > 100 {
		return 0, false
	}
	return int(f), true
}

func (s *Supervisor) classifyExit(ctx context.Context, waitErr error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: download exceeded wall-clock ceiling", domain.ErrTimeout)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("canceled: %w", ctx.Err())
	}
	if stderr != "" {
		return Classify(fmt.Errorf("%v: %s", waitErr, firstStderrLine(stderr)))
	}
	return Classify(waitErr)
}

// watchdog kills the process as soon as ctx is done. The returned stop
// function must be called on every exit path so the goroutine never leaks.
func watchdog(ctx context.Context, proc Process) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.Kill()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// findArtifact locates the produced output file for a job. The extractor
// substitutes the container extension itself, so the exact name is only
// known after exit.
func findArtifact(dir, base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: no artifact %s.* in %s", domain.ErrOutputMissing, base, dir)
	}
	return matches[0], nil
}

func errorEvent(err error) domain.ProgressEvent {
	return domain.ProgressEvent{Type: domain.EventError, Error: err.Error()}
}

// captureStderr drains the stream, keeping only the head for diagnostics so
// a chatty subprocess cannot grow memory unbounded.
func captureStderr(r io.Reader) string {
	var buf bytes.Buffer
	io.Copy(&buf, io.LimitReader(r, stderrCaptureLimit))
	io.Copy(io.Discard, r)
	return buf.String()
}
