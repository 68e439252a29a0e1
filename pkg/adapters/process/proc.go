package process

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// maxLine bounds a single response line.
const maxLine = 64 << 20

// stderrLimit bounds the solver stderr kept for error messages.
const stderrLimit = 16 << 10

// errProcessLost means the solver died, hung or stopped answering; the request may be retried.
var errProcessLost = errors.New("solver process lost")

// proc is one running solver speaking NDJSON on stdin/stdout.
type proc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	done   chan struct{}
	quit   chan struct{}
	once   sync.Once
	stderr *tailBuffer
	grace  time.Duration

	waitErr error
}

func startProc(cfg Config, grace time.Duration) (*proc, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.WaitDelay = grace
	cmd.Env = os.Environ()
	for k, v := range cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	p := &proc{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		stderr: &tailBuffer{limit: stderrLimit},
		grace:  grace,
	}
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cfg.Command, err)
	}

	go p.read(stdout)
	return p, nil
}

// read forwards stdout lines until EOF, then reaps the process.
func (p *proc) read(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case p.lines <- line:
		case <-p.quit:
		}
	}
	// Drain so Wait can close the pipe.
	_, _ = io.Copy(io.Discard, stdout)
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

// roundTrip writes req and returns the next response line.
func (p *proc) roundTrip(ctx context.Context, req *Request, timeout time.Duration) (map[string]any, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	if _, err := p.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("%w: write: %v%s", errProcessLost, err, p.stderrTail())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		p.kill()
		return nil, ctx.Err()
	case <-timer.C:
		p.kill()
		return nil, fmt.Errorf("%w: no answer within %s", errProcessLost, timeout)
	case <-p.done:
		return nil, fmt.Errorf("%w: exited: %v%s", errProcessLost, p.waitErr, p.stderrTail())
	case line := <-p.lines:
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("undecodable response %q: %w", truncate(line), err)
		}
		return raw, nil
	}
}

// stop closes stdin and waits for a graceful exit, killing the process after the grace period.
func (p *proc) stop() error {
	_ = p.stdin.Close()
	p.once.Do(func() { close(p.quit) })
	select {
	case <-p.done:
	case <-time.After(p.grace):
		p.kill()
		<-p.done
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) && !exitErr.Exited() {
		// Killed by us.
		return nil
	}
	return p.waitErr
}

func (p *proc) kill() {
	p.once.Do(func() { close(p.quit) })
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *proc) stderrTail() string {
	s := p.stderr.String()
	if s == "" {
		return ""
	}
	return ". Stderr: " + s
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(b)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf.Bytes()))
}
