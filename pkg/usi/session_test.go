package usi_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"kifu/pkg/usi"
)

const shogiStart = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

// fakeEngine answers the handshake and reports a fixed score for every search.
func fakeEngine(t *testing.T, cp int) (*usi.Session, func() []string) {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	var mu sync.Mutex
	var received []string
	go func() {
		defer outW.Close()
		sc := bufio.NewScanner(cmdR)
		for sc.Scan() {
			line := sc.Text()
			mu.Lock()
			received = append(received, line)
			mu.Unlock()
			switch strings.Fields(line)[0] {
			case "usi":
				fmt.Fprintln(outW, "id name fake")
				fmt.Fprintln(outW, "usiok")
			case "isready":
				fmt.Fprintln(outW, "readyok")
			case "go":
				fmt.Fprintln(outW, "info depth 1 score cp 1 pv 7g7f")
				fmt.Fprintf(outW, "info depth 2 score cp %d pv 7g7f\n", cp)
				fmt.Fprintln(outW, "bestmove 7g7f")
			case "quit":
				return
			}
		}
	}()
	s := usi.NewSession(outR, cmdW)
	return s, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), received...)
	}
}

// TestSession_HandshakeAndEvaluate verifies the command sequence and score
// normalization to Black's view.
func TestSession_HandshakeAndEvaluate(t *testing.T) {
	s, received := fakeEngine(t, 120)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Handshake(ctx, usi.Option{Name: "Threads", Value: "1"}); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	score, move, err := s.Evaluate(ctx, "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1", 10)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score != (usi.Score{Kind: "cp", Value: 120}) || move != "7g7f" {
		t.Fatalf("unexpected result %v %s", score, move)
	}
	score, _, err = s.Evaluate(ctx, "lnsgkgsnl/1r5b1/ppppppppp/9/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL w - 2", 10)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score.Value != -120 {
		t.Fatalf("white-to-move score should be flipped, got %v", score)
	}

	got := received()
	want := []string{"usi", "setoption name Threads value 1", "isready", "usinewgame"}
	for i, w := range want {
		if i >= len(got) || got[i] != w {
			t.Fatalf("command %d: got %v want prefix %v", i, got, want)
		}
	}
}

// TestSession_ContextCanceled verifies a canceled context stops waiting.
func TestSession_ContextCanceled(t *testing.T) {
	outR, outW := io.Pipe()
	defer outW.Close()
	s := usi.NewSession(outR, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Handshake(ctx); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

// TestSession_EngineExit verifies a closed stdout is reported.
func TestSession_EngineExit(t *testing.T) {
	s := usi.NewSession(strings.NewReader("id name quitter\n"), io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Handshake(ctx); !errors.Is(err, usi.ErrEngineExited) {
		t.Fatalf("expected ErrEngineExited before usiok, got %v", err)
	}
}

// TestSession_RepliesBeforeExit verifies output written just before the
// engine exits is still read.
func TestSession_RepliesBeforeExit(t *testing.T) {
	s := usi.NewSession(strings.NewReader("usiok\nreadyok\n"), io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if _, _, err := s.Evaluate(ctx, shogiStart, 1); !errors.Is(err, usi.ErrEngineExited) {
		t.Fatalf("expected ErrEngineExited once output ends, got %v", err)
	}
}

// TestSession_MalformedBestMove verifies a bestmove without a move ends the
// session instead of waiting for the deadline.
func TestSession_MalformedBestMove(t *testing.T) {
	s := usi.NewSession(strings.NewReader("usiok\nreadyok\ninfo depth 1 score cp 3\nbestmove\n"), io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	_, _, err := s.Evaluate(ctx, shogiStart, 1)
	if !errors.Is(err, usi.ErrEngineExited) || !strings.Contains(err.Error(), "bestmove") {
		t.Fatalf("expected a bestmove protocol error, got %v", err)
	}
}

// TestSession_ResignWithoutScore verifies a bare resign is a mate against the
// side to move.
func TestSession_ResignWithoutScore(t *testing.T) {
	s := usi.NewSession(strings.NewReader("usiok\nreadyok\nbestmove resign\n"), io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	score, move, err := s.Evaluate(ctx, "lnsgkgsnl/1r5b1/ppppppppp/9/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL w - 2", 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if move != "resign" || score != (usi.Score{Kind: "mate", Value: 1}) {
		t.Fatalf("white resigning should be mate for black, got %v %s", score, move)
	}
}

// chattyEngine writes far more than a pipe buffer to stderr before and during
// every search.
const chattyEngine = `noise() { i=0; while [ $i -lt 3000 ]; do echo "$1 $i" >&2; i=$((i+1)); done; }
noise startup
while read -r line; do
  case "$line" in
    usi) echo "id name chatty"; echo usiok ;;
    isready) echo readyok ;;
    go*) noise search; echo "info depth 1 score cp 42 pv 7g7f"; echo "bestmove 7g7f" ;;
    quit) exit 0 ;;
  esac
done
`

// TestStartSession_DrainsStderr verifies an engine that floods stderr keeps
// answering and only the tail of its diagnostics is kept.
func TestStartSession_DrainsStderr(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := usi.StartSession(ctx, sh, "-c", chattyEngine)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Handshake(ctx, usi.DefaultOptions...); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	score, move, err := s.Evaluate(ctx, shogiStart, 10)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score != (usi.Score{Kind: "cp", Value: 42}) || move != "7g7f" {
		t.Fatalf("unexpected result %v %s", score, move)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	tail := s.Stderr()
	if !strings.Contains(tail, "search 2999") || strings.Contains(tail, "startup 0\n") || len(tail) > 4<<10 {
		t.Fatalf("unexpected stderr tail (%d bytes): %q", len(tail), tail)
	}
	if err := s.Handshake(ctx); !errors.Is(err, usi.ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}
