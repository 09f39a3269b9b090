package usi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Score is an engine evaluation. Engines report it for the side to move;
// Session.Evaluate turns it to Black's point of view.
type Score struct {
	Kind  string // "cp" or "mate"
	Value int
}

type replyKind int8

const (
	replyUSIOK replyKind = iota + 1
	replyReadyOK
	replyScore
	replyBestMove
)

// reply is an engine line the session acts on.
type reply struct {
	kind  replyKind
	score Score
	move  string
}

// parseReply classifies one engine line. id, option and info lines without a
// score are not replies and report false.
func parseReply(line string) (reply, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return reply{}, false, nil
	}
	switch fields[0] {
	case "usiok":
		return reply{kind: replyUSIOK}, true, nil
	case "readyok":
		return reply{kind: replyReadyOK}, true, nil
	case "info":
		score, ok := ParseInfoScore(line)
		return reply{kind: replyScore, score: score}, ok, nil
	case "bestmove":
		if len(fields) < 2 {
			return reply{}, false, fmt.Errorf("usi: bestmove without a move: %q", line)
		}
		return reply{kind: replyBestMove, move: fields[1]}, true, nil
	default:
		return reply{}, false, nil
	}
}

// readReplies forwards every reply on r to out until r fails or ends.
func readReplies(r io.Reader, out chan<- reply) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		rep, ok, err := parseReply(sc.Text())
		if err != nil {
			return err
		}
		if ok {
			out <- rep
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// ParseInfoScore extracts "score cp N" or "score mate N" from an info line.
// "mate +" and "mate -" without a distance count as mate in one either way.
func ParseInfoScore(line string) (Score, bool) {
	fields := strings.Fields(line)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] != "score" {
			continue
		}
		kind, text := fields[i+1], fields[i+2]
		if kind != "cp" && kind != "mate" {
			return Score{}, false
		}
		if kind == "mate" && (text == "+" || text == "-") {
			text += "1"
		}
		value, err := strconv.Atoi(text)
		if err != nil {
			return Score{}, false
		}
		return Score{Kind: kind, Value: value}, true
	}
	return Score{}, false
}
