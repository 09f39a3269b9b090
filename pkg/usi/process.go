package usi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned when writing to a session whose engine was stopped.
var ErrClosed = errors.New("usi: engine is closed")

// quitGrace is how long an engine has to exit after quit before it is killed.
const quitGrace = 3 * time.Second

// stderrTailSize bounds the engine diagnostics kept for error messages.
const stderrTailSize = 4 << 10

// StartSession launches the engine binary at path and starts reading its
// output. The working directory is the binary's directory, where engines look
// for their eval files. Stderr is drained continuously so a chatty engine
// cannot stall on a full pipe; the last few kilobytes are kept for Stderr.
func StartSession(ctx context.Context, path string, args ...string) (*Session, error) {
	if path == "" {
		return nil, errors.New("usi: engine path is required")
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = filepath.Dir(path)
	tail := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = tail
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("usi: start %s: %w", path, err)
	}
	p := &process{cmd: cmd, stdin: stdin}
	s := newSession(stdout, p.send, p.stop)
	s.stderr = tail
	return s, nil
}

type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	stopped bool
}

func (p *process) send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrClosed
	}
	return writeLine(p.stdin, line)
}

// stop sends quit, closes stdin and kills the engine if it outlives quitGrace.
func (p *process) stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	_ = writeLine(p.stdin, "quit")
	_ = p.stdin.Close()
	p.mu.Unlock()

	kill := time.AfterFunc(quitGrace, func() { _ = p.cmd.Process.Kill() })
	err := p.cmd.Wait()
	if !kill.Stop() {
		return fmt.Errorf("usi: engine did not exit within %s", quitGrace)
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}
