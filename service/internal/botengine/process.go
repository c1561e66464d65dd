// internal/botengine/process.go
package botengine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport delivers one request and waits for the reply carrying its ID.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}

const (
	// maxLine bounds a single reply line.
	maxLine    = 1 << 20
	closeGrace = 5 * time.Second
)

// Process is a long-running engine subprocess speaking JSON lines over
// stdin and stdout. Requests are serialized; replies to abandoned requests
// are discarded by ID.
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte
	done  chan struct{}
	log   *logrus.Entry

	mu      sync.Mutex // serializes round trips
	readErr error      // set before done is closed
}

// StartProcess launches the engine at path. Its stderr is forwarded to log.
func StartProcess(path string, args []string, log *logrus.Entry) (*Process, error) {
	if log == nil {
		log = logrus.WithField("component", "botengine")
	}
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	cmd.Stderr = log.WriterLevel(logrus.DebugLevel)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", path, err)
	}
	p := &Process{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan []byte),
		done:  make(chan struct{}),
		log:   log,
	}
	go p.readLoop(stdout)
	log.Infof("Bot engine %s started (pid %d).", path, cmd.Process.Pid)
	return p, nil
}

func (p *Process) readLoop(r io.Reader) {
	defer close(p.done)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		p.lines <- line
	}
	p.readErr = sc.Err()
	if p.readErr == nil {
		p.readErr = io.EOF
	}
}

// RoundTrip writes req and waits for the matching reply or ctx expiry.
func (p *Process) RoundTrip(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("write engine request: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-p.done:
			return Response{}, fmt.Errorf("%w: engine exited: %v", ErrProtocol, p.readErr)
		case line := <-p.lines:
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				p.log.Debugf("Bot engine: skipping non-protocol line %q", line)
				continue
			}
			if resp.RequestID != req.RequestID {
				p.log.Debugf("Bot engine: discarding reply to abandoned request %s", resp.RequestID)
				continue
			}
			return resp, nil
		}
	}
}

// Close stops the engine by closing its stdin and waits for it to exit. An
// engine that keeps running after closeGrace is killed.
func (p *Process) Close() error {
	p.stdin.Close()
	grace := time.NewTimer(closeGrace)
	defer grace.Stop()
drain:
	for {
		select {
		case <-p.lines:
		case <-p.done:
			break drain
		case <-grace.C:
			p.log.Warnf("Bot engine did not exit after %s, killing it.", closeGrace)
			p.cmd.Process.Kill()
		}
	}
	return p.cmd.Wait()
}
