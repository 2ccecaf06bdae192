package extractor

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// fakeRunner scripts subprocess behavior for tests. Each Run call pops the
// next scripted result; Start hands out the configured fakeProcess.
type fakeRunner struct {
	mu      sync.Mutex
	runs    []fakeRun
	calls   int
	argv    [][]string
	process *fakeProcess
}

type fakeRun struct {
	out []byte
	err error
}

func (r *fakeRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argv = append(r.argv, args)
	if r.calls >= len(r.runs) {
		return nil, errors.New("fakeRunner: no scripted result")
	}
	res := r.runs[r.calls]
	r.calls++
	return res.out, res.err
}

func (r *fakeRunner) Start(ctx context.Context, args ...string) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argv = append(r.argv, args)
	if r.process == nil {
		return nil, errors.New("fakeRunner: no scripted process")
	}
	return r.process, nil
}

// fakeProcess emulates a running subprocess with fixed stdout/stderr content
// and a scripted exit.
type fakeProcess struct {
	stdout  io.Reader
	stderr  io.Reader
	waitErr error

	mu       sync.Mutex
	killed   bool
	waitGate chan struct{} // when set, Wait blocks until closed or killed
}

func newFakeProcess(stdout, stderr string, waitErr error) *fakeProcess {
	return &fakeProcess{
		stdout:  strings.NewReader(stdout),
		stderr:  strings.NewReader(stderr),
		waitErr: waitErr,
	}
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }

func (p *fakeProcess) Wait() error {
	if p.waitGate != nil {
		<-p.waitGate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return errors.New("signal: killed")
	}
	return p.waitErr
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.killed {
		p.killed = true
		if p.waitGate != nil {
			close(p.waitGate)
		}
	}
	return nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}
