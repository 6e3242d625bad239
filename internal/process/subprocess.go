// Package process runs a child process and reports its lifecycle.
//
// Two completion signals are kept apart. Exited fires when the
// operating system reports the process as terminated. Closed fires when both
// of its output streams have reached EOF, which can be earlier (the child
// closed its descriptors) or later (a grandchild inherited them). Callers that
// need the child's side effects to be complete wait on Exited.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultDrainTimeout is how long output streams may stay open after exit
const DefaultDrainTimeout = 2 * time.Second

// ErrLaunch wraps every failure to start the child
var ErrLaunch = errors.New("process launch failed")

// Spec describes the child process to run
type Spec struct {
	Path string
	Args []string
	// Env is appended to the parent environment
	Env []string
	Dir string
	// DrainTimeout bounds how long after exit the output streams are read.
	// Zero means DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// ExitStatus describes how the child terminated
type ExitStatus struct {
	Code     int
	Signaled bool
	Err      error
	Duration time.Duration
}

// Success reports whether the child exited normally with status 0
func (s ExitStatus) Success() bool {
	return s.Err == nil && !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("wait error: %v", s.Err)
	case s.Signaled:
		return "killed by signal"
	default:
		return fmt.Sprintf("exit code %d", s.Code)
	}
}

// Subprocess is a running child process
type Subprocess struct {
	cmd    *exec.Cmd
	logger *logrus.Entry

	exited chan struct{}
	closed chan struct{}
	status ExitStatus

	streams   []io.ReadCloser
	closeOnce sync.Once
}

// Start launches the child described by spec. Its stdout and stderr are
// logged line by line. Cancelling ctx kills the child; Exited still fires.
func Start(ctx context.Context, spec Spec, logger *logrus.Logger) (*Subprocess, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrLaunch, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrLaunch, err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, spec.Path, err)
	}

	p := &Subprocess{
		cmd:     cmd,
		logger:  logger.WithField("pid", cmd.Process.Pid),
		exited:  make(chan struct{}),
		closed:  make(chan struct{}),
		streams: []io.ReadCloser{stdout, stderr},
	}

	var g errgroup.Group
	g.Go(func() error { return p.pump("stdout", stdout) })
	g.Go(func() error { return p.pump("stderr", stderr) })

	go func() {
		if err := g.Wait(); err != nil {
			p.logger.WithError(err).Debug("Output stream ended with error")
		}
		p.closeStreams()
		p.logger.Infof("[END] streams closed (%s)", p.statusIfExited())
		close(p.closed)
	}()

	go p.wait(started)

	drain := spec.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	go p.supervise(ctx, drain)

	return p, nil
}

// Pid returns the child's process id
func (p *Subprocess) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the child has terminated
func (p *Subprocess) Exited() <-chan struct{} {
	return p.exited
}

// Closed is closed once both output streams have ended
func (p *Subprocess) Closed() <-chan struct{} {
	return p.closed
}

// Status returns the exit status. It is only meaningful after Exited fires.
func (p *Subprocess) Status() ExitStatus {
	<-p.exited
	return p.status
}

// Kill terminates the child immediately
func (p *Subprocess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// WaitExit blocks until the child exits or ctx is done
func (p *Subprocess) WaitExit(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.exited:
		return p.status, nil
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

func (p *Subprocess) wait(started time.Time) {
	state, err := p.cmd.Process.Wait()
	status := ExitStatus{Err: err, Duration: time.Since(started)}
	if state != nil {
		status.Code = state.ExitCode()
		status.Signaled = !state.Exited()
	}
	p.status = status

	p.logger.WithField("duration_ms", status.Duration.Milliseconds()).Infof("[EXIT] %s", status)
	close(p.exited)
}

// supervise kills the child when ctx ends and force-closes the output
// streams if they outlive the child by more than drain.
func (p *Subprocess) supervise(ctx context.Context, drain time.Duration) {
	select {
	case <-ctx.Done():
		p.logger.WithError(ctx.Err()).Warn("Killing child process")
		if err := p.Kill(); err != nil {
			p.logger.WithError(err).Error("Failed to kill child process")
		}
		<-p.exited
	case <-p.exited:
	}

	select {
	case <-p.closed:
	case <-time.After(drain):
		p.logger.Warn("Output streams still open after exit, closing them")
		p.closeStreams()
	}
}

func (p *Subprocess) pump(name string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.logger.WithField("stream", name).Infof("[STR] %s %q", name, scanner.Text())
	}
	err := scanner.Err()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

func (p *Subprocess) closeStreams() {
	p.closeOnce.Do(func() {
		for _, s := range p.streams {
			s.Close()
		}
	})
}

func (p *Subprocess) statusIfExited() string {
	select {
	case <-p.exited:
		return p.status.String()
	default:
		return "process still running"
	}
}
