package usi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrEngineExited is returned once the engine's output has ended.
var ErrEngineExited = errors.New("usi: engine exited")

// Option is a setoption line sent during the handshake.
type Option struct {
	Name  string
	Value string
}

// DefaultOptions keeps engines light enough to run one per game.
var DefaultOptions = []Option{
	{Name: "Threads", Value: "1"},
	{Name: "USI_Hash", Value: "256"},
}

// Session is one USI conversation. Calls must not overlap; Evaluate holds an
// internal lock for the whole search.
type Session struct {
	send    func(string) error
	close   func() error
	stderr  *tailBuffer
	replies chan reply
	done    chan struct{}
	readErr error

	mu sync.Mutex
}

// NewSession runs the protocol over an existing stream pair, such as a
// network connection or an in-process engine.
func NewSession(r io.Reader, w io.Writer) *Session {
	var mu sync.Mutex
	send := func(line string) error {
		mu.Lock()
		defer mu.Unlock()
		return writeLine(w, line)
	}
	closeFn := func() error {
		err := send("quit")
		if c, ok := w.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
		return err
	}
	return newSession(r, send, closeFn)
}

func newSession(r io.Reader, send func(string) error, closeFn func() error) *Session {
	s := &Session{
		send:    send,
		close:   closeFn,
		replies: make(chan reply, 64),
		done:    make(chan struct{}),
	}
	go func() {
		s.readErr = readReplies(r, s.replies)
		close(s.done)
	}()
	return s
}

// Close terminates the engine.
func (s *Session) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Stderr returns the most recent engine diagnostics, or "" for sessions not
// started by StartSession.
func (s *Session) Stderr() string {
	if s == nil || s.stderr == nil {
		return ""
	}
	return s.stderr.String()
}

// Handshake runs usi/usiok, sends options, then isready/readyok and
// usinewgame.
func (s *Session) Handshake(ctx context.Context, options ...Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send("usi"); err != nil {
		return err
	}
	if err := s.await(ctx, replyUSIOK); err != nil {
		return fmt.Errorf("usi: waiting for usiok: %w", err)
	}
	for _, opt := range options {
		if err := s.send("setoption name " + opt.Name + " value " + opt.Value); err != nil {
			return err
		}
	}
	if err := s.send("isready"); err != nil {
		return err
	}
	if err := s.await(ctx, replyReadyOK); err != nil {
		return fmt.Errorf("usi: waiting for readyok: %w", err)
	}
	return s.send("usinewgame")
}

// Evaluate searches sfen for moveTimeMs and returns the last reported score
// from Black's point of view together with the engine's best move. A bare
// "bestmove resign" or "bestmove win" counts as mate against or for the
// side to move.
func (s *Session) Evaluate(ctx context.Context, sfen string, moveTimeMs int) (Score, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send("position sfen " + sfen); err != nil {
		return Score{}, "", err
	}
	if err := s.send(fmt.Sprintf("go movetime %d", max(moveTimeMs, 1))); err != nil {
		return Score{}, "", err
	}
	whiteToMove := false
	if fields := strings.Fields(sfen); len(fields) >= 2 {
		whiteToMove = fields[1] == "w"
	}

	var score Score
	haveScore := false
	for {
		rep, err := s.next(ctx)
		if err != nil {
			return Score{}, "", err
		}
		switch rep.kind {
		case replyScore:
			score, haveScore = rep.score, true
		case replyBestMove:
			if !haveScore {
				switch rep.move {
				case "resign":
					score, haveScore = Score{Kind: "mate", Value: -1}, true
				case "win":
					score, haveScore = Score{Kind: "mate", Value: 1}, true
				default:
					return Score{}, rep.move, errors.New("usi: no score in engine output")
				}
			}
			if whiteToMove {
				score.Value = -score.Value
			}
			return score, rep.move, nil
		}
	}
}

func (s *Session) await(ctx context.Context, want replyKind) error {
	for {
		rep, err := s.next(ctx)
		if err != nil {
			return err
		}
		if rep.kind == want {
			return nil
		}
	}
}

// next returns the following reply. Replies queued before the engine exited
// are still delivered.
func (s *Session) next(ctx context.Context) (reply, error) {
	select {
	case rep := <-s.replies:
		return rep, nil
	default:
	}
	select {
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case rep := <-s.replies:
		return rep, nil
	case <-s.done:
		select {
		case rep := <-s.replies:
			return rep, nil
		default:
		}
		return reply{}, s.exitErr()
	}
}

func (s *Session) exitErr() error {
	err := ErrEngineExited
	if s.readErr != nil && !errors.Is(s.readErr, io.EOF) {
		err = fmt.Errorf("%w: %w", ErrEngineExited, s.readErr)
	}
	if tail := strings.TrimSpace(s.Stderr()); tail != "" {
		last := tail[strings.LastIndexByte(tail, '\n')+1:]
		err = fmt.Errorf("%w (stderr: %s)", err, last)
	}
	return err
}
