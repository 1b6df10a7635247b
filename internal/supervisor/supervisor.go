// Package supervisor owns the child processes an integration run depends on,
// such as local demo services. Every started child is stopped by Shutdown.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/logging"
)

// DefaultStartTimeout bounds the wait for a health URL
const DefaultStartTimeout = 15 * time.Second

// Process describes one child to launch
type Process struct {
	Name         string
	Command      string
	Args         []string
	Dir          string
	Env          map[string]string
	HealthURL    string
	StartTimeout time.Duration
}

type child struct {
	proc Process
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Supervisor starts and stops child processes
type Supervisor struct {
	logger       logging.Logger
	httpClient   *http.Client
	output       *sharedOutput
	pollInterval time.Duration

	mu       sync.Mutex
	children []*child
	stopped  bool
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithOutput sets where child stdout and stderr are written. Lines are
// prefixed with the process name.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) {
		s.output = &sharedOutput{w: w}
	}
}

// WithHTTPClient sets the client used for health checks
func WithHTTPClient(client *http.Client) Option {
	return func(s *Supervisor) {
		s.httpClient = client
	}
}

// WithPollInterval sets how often health URLs are polled
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// New creates a supervisor. A nil logger uses the global logger.
func New(logger logging.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Supervisor{
		logger:       logger.WithFields(logging.Component("supervisor")),
		httpClient:   &http.Client{Timeout: 2 * time.Second},
		output:       &sharedOutput{w: os.Stderr},
		pollInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches every process and waits for their health URLs. On failure the
// children already started keep running until Shutdown.
func (s *Supervisor) Start(ctx context.Context, procs []Process) error {
	for _, p := range procs {
		if err := s.start(p); err != nil {
			return err
		}
	}

	for _, c := range s.snapshot() {
		if c.proc.HealthURL == "" {
			continue
		}
		if err := s.waitHealthy(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) start(p Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.InternalError("supervisor is shut down", nil)
	}

	cmd := exec.Command(p.Command, p.Args...)
	cmd.Dir = p.Dir
	out := newLineWriter(s.output, p.Name)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcessGroup(cmd)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(p.Env)...)
	}

	if err := cmd.Start(); err != nil {
		return errors.InternalError(fmt.Sprintf("failed to start process %q", p.Name), err)
	}

	c := &child{proc: p, cmd: cmd, done: make(chan struct{})}
	go func() {
		c.err = cmd.Wait()
		out.Flush()
		close(c.done)
	}()
	s.children = append(s.children, c)

	s.logger.Info("Process started",
		logging.Process(p.Name),
		logging.Int("pid", cmd.Process.Pid),
	)
	return nil
}

func (s *Supervisor) waitHealthy(ctx context.Context, c *child) error {
	timeout := c.proc.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.healthy(ctx, c.proc.HealthURL) {
			s.logger.Info("Process healthy", logging.Process(c.proc.Name))
			return nil
		}

		select {
		case <-c.done:
			return errors.InternalError(fmt.Sprintf("process %q exited before becoming healthy", c.proc.Name), c.err)
		case <-ctx.Done():
			return errors.InternalError(fmt.Sprintf("process %q not healthy at %s", c.proc.Name, c.proc.HealthURL), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) healthy(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Shutdown asks every child to stop with SIGTERM and kills those still running
// after grace. It is safe to call more than once.
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.mu.Lock()
	s.stopped = true
	children := s.children
	s.children = nil
	s.mu.Unlock()

	if len(children) == 0 {
		return
	}

	for _, c := range children {
		if c.exited() {
			continue
		}
		if err := terminate(c.cmd); err != nil {
			s.logger.Debug("Signal failed", logging.Process(c.proc.Name), logging.Err(err))
		}
	}

	if !waitAll(children, grace) {
		for _, c := range children {
			if !c.exited() {
				s.logger.Warn("Killing process after grace period", logging.Process(c.proc.Name))
				_ = kill(c.cmd)
			}
		}
		for _, c := range children {
			<-c.done
		}
	}

	s.logger.Info("All processes stopped", logging.Int("count", len(children)))
}

// waitAll reports whether every child exited within grace
func waitAll(children []*child, grace time.Duration) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for _, c := range children {
		select {
		case <-c.done:
		case <-timer.C:
			return false
		}
	}
	return true
}

// Running counts children that have not exited
func (s *Supervisor) Running() int {
	n := 0
	for _, c := range s.snapshot() {
		if !c.exited() {
			n++
		}
	}
	return n
}

func (s *Supervisor) snapshot() []*child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*child(nil), s.children...)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
