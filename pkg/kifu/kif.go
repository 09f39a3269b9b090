package kifu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"kifu/pkg/shogi"
)

// ErrUnsupportedKIF is returned for handicap games and custom start positions.
var ErrUnsupportedKIF = errors.New("kifu: only even games from the standard position are supported")

type square struct {
	file int
	rank int
}

var moveLineRe = regexp.MustCompile(`^\s*(\d+)\s+(同[\s\x{3000}]*)?(\S+)`)
var fromSquareRe = regexp.MustCompile(`\(([1-9])([1-9])\)$`)

// DecodeKIF strips a UTF-8 BOM and falls back to Shift-JIS for non-UTF-8 input.
func DecodeKIF(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(decoded) {
		return "", errors.New("kifu: failed to decode Shift-JIS KIF")
	}
	return string(decoded), nil
}

// ParseKIF extracts the moves of an even game as USI strings. Parsing stops
// at the first terminal marker such as 投了 or 詰み.
func ParseKIF(data []byte) ([]string, error) {
	text, err := DecodeKIF(data)
	if err != nil {
		return nil, err
	}
	var moves []string
	var prev *square
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if err := checkHeader(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		match := moveLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if isTerminalMove(match[3]) {
			break
		}
		usi, dest, err := parseKIFMove(match[2] != "", match[3], prev)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		moves = append(moves, usi)
		prev = &dest
	}
	return moves, nil
}

func checkHeader(line string) error {
	if strings.HasPrefix(line, "手合割") && !strings.Contains(line, "平手") {
		return ErrUnsupportedKIF
	}
	if strings.HasPrefix(line, "|") || strings.HasPrefix(line, "後手の持駒") {
		return ErrUnsupportedKIF
	}
	return nil
}

func isTerminalMove(token string) bool {
	switch token {
	case "投了", "中断", "持将棋", "千日手", "詰み", "切れ負け", "反則勝ち", "反則負け", "入玉勝ち", "勝ち宣言":
		return true
	default:
		return false
	}
}

type kifPiece struct {
	name     string
	letter   string
	promoted bool
}

// Longer names first so 成銀 is not read as a promoting 銀.
var kifPieces = []kifPiece{
	{name: "成銀", letter: "S", promoted: true},
	{name: "成桂", letter: "N", promoted: true},
	{name: "成香", letter: "L", promoted: true},
	{name: "全", letter: "S", promoted: true},
	{name: "圭", letter: "N", promoted: true},
	{name: "杏", letter: "L", promoted: true},
	{name: "と", letter: "P", promoted: true},
	{name: "馬", letter: "B", promoted: true},
	{name: "龍", letter: "R", promoted: true},
	{name: "竜", letter: "R", promoted: true},
	{name: "王", letter: "K"},
	{name: "玉", letter: "K"},
	{name: "飛", letter: "R"},
	{name: "角", letter: "B"},
	{name: "金", letter: "G"},
	{name: "銀", letter: "S"},
	{name: "桂", letter: "N"},
	{name: "香", letter: "L"},
	{name: "歩", letter: "P"},
}

func parseKIFMove(same bool, token string, prev *square) (string, square, error) {
	work := token
	var dest square
	if same {
		if prev == nil {
			return "", square{}, errors.New("same-square move without previous destination")
		}
		dest = *prev
	} else {
		runes := []rune(work)
		if len(runes) < 3 {
			return "", square{}, fmt.Errorf("invalid move token %q", token)
		}
		file, ok := parseFileRune(runes[0])
		if !ok {
			return "", square{}, fmt.Errorf("invalid destination file in %q", token)
		}
		rank, ok := parseRankRune(runes[1])
		if !ok {
			return "", square{}, fmt.Errorf("invalid destination rank in %q", token)
		}
		dest = square{file: file, rank: rank}
		work = string(runes[2:])
	}

	var from square
	hasFrom := false
	if m := fromSquareRe.FindStringSubmatch(work); m != nil {
		from = square{file: int(m[1][0] - '0'), rank: int(m[2][0] - '0')}
		hasFrom = true
		work = strings.TrimSuffix(work, m[0])
	}

	var piece kifPiece
	found := false
	for _, p := range kifPieces {
		if strings.HasPrefix(work, p.name) {
			piece, found = p, true
			work = strings.TrimPrefix(work, p.name)
			break
		}
	}
	if !found {
		return "", square{}, fmt.Errorf("unknown piece in %q", token)
	}

	switch work {
	case "打":
		if piece.promoted || piece.letter == "K" {
			return "", square{}, fmt.Errorf("cannot drop %s", piece.name)
		}
		return piece.letter + "*" + formatSquare(dest), dest, nil
	case "", "成", "不成":
	default:
		return "", square{}, fmt.Errorf("unexpected suffix %q in %q", work, token)
	}
	if !hasFrom {
		// Some writers omit 打 when only a drop is possible.
		if work == "" && !piece.promoted && piece.letter != "K" {
			return piece.letter + "*" + formatSquare(dest), dest, nil
		}
		return "", square{}, fmt.Errorf("missing source square in %q", token)
	}
	usi := formatSquare(from) + formatSquare(dest)
	if work == "成" {
		if piece.promoted {
			return "", square{}, fmt.Errorf("%s is already promoted", piece.name)
		}
		usi += "+"
	}
	return usi, dest, nil
}

func parseFileRune(r rune) (int, bool) {
	if r >= '1' && r <= '9' {
		return int(r - '0'), true
	}
	if r >= '１' && r <= '９' {
		return int(r-'１') + 1, true
	}
	return 0, false
}

var rankKanji = []rune("一二三四五六七八九")

func parseRankRune(r rune) (int, bool) {
	for i, k := range rankKanji {
		if r == k {
			return i + 1, true
		}
	}
	return 0, false
}

func formatSquare(s square) string {
	return fmt.Sprintf("%d%c", s.file, byte('a'+s.rank-1))
}

var kifNames = map[shogi.PieceType]string{
	shogi.King:           "玉",
	shogi.Rook:           "飛",
	shogi.Bishop:         "角",
	shogi.Gold:           "金",
	shogi.Silver:         "銀",
	shogi.Knight:         "桂",
	shogi.Lance:          "香",
	shogi.Pawn:           "歩",
	shogi.Dragon:         "龍",
	shogi.Horse:          "馬",
	shogi.PromotedSilver: "成銀",
	shogi.PromotedKnight: "成桂",
	shogi.PromotedLance:  "成香",
	shogi.PromotedPawn:   "と",
}

// KIFOptions controls WriteKIF output.
type KIFOptions struct {
	ShiftJIS bool
}

// WriteKIF renders r as a KIF game record. The moves are replayed from the
// standard opening, so an illegal move is reported instead of written. The
// terminal line follows Ending: 詰み when the loser had no legal move,
// 反則負け with a comment when every move repeated a position, 投了 otherwise.
// Games from other start positions are rejected with ErrUnsupportedKIF.
func WriteKIF(w io.Writer, r Record, opts KIFOptions) error {
	if r.StartSFEN != "" {
		return fmt.Errorf("game %s: %w", r.GameID, ErrUnsupportedKIF)
	}
	var buf bytes.Buffer
	buf.WriteString("# ---- kifu self-play record ----\n")
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&buf, "開始日時：%s\n", r.StartedAt.Format("2006/01/02 15:04:05"))
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&buf, "終了日時：%s\n", r.FinishedAt.Format("2006/01/02 15:04:05"))
	}
	buf.WriteString("手合割：平手\n")
	fmt.Fprintf(&buf, "先手：selfplay %s\n", r.GameID)
	fmt.Fprintf(&buf, "後手：selfplay %s\n", r.GameID)
	buf.WriteString("手数----指手---------消費時間--\n")

	b := shogi.NewInitialBoards()
	turn := shogi.Black
	var prev *shogi.Position
	for i, text := range r.Moves {
		m, err := shogi.FindLegal(b, turn, text)
		if err != nil {
			return fmt.Errorf("kifu: game %s ply %d: %w", r.GameID, i+1, err)
		}
		fmt.Fprintf(&buf, "%4d %s   ( 0:00/00:00:00)\n", i+1, kifMove(&b, m, prev))
		to := m.To
		prev = &to
		b = shogi.ApplyMove(b, m)
		turn = turn.Opponent()
	}
	ending, err := r.Ending()
	if err != nil {
		return err
	}
	terminal := "投了"
	switch ending {
	case EndCheckmate:
		terminal = "詰み"
	case EndRepetition:
		buf.WriteString("*指せる手はすべて既出の局面\n")
		terminal = "反則負け"
	}
	fmt.Fprintf(&buf, "%4d %s   ( 0:00/00:00:00)\n", len(r.Moves)+1, terminal)
	side := "先手"
	if r.Winner == shogi.White {
		side = "後手"
	}
	fmt.Fprintf(&buf, "まで%d手で%sの勝ち\n", len(r.Moves), side)

	if !opts.ShiftJIS {
		_, err := w.Write(buf.Bytes())
		return err
	}
	tw := transform.NewWriter(w, japanese.ShiftJIS.NewEncoder())
	if _, err := tw.Write(buf.Bytes()); err != nil {
		tw.Close()
		return err
	}
	return tw.Close()
}

func kifMove(b *shogi.Boards, m shogi.Move, prev *shogi.Position) string {
	var sb strings.Builder
	if prev != nil && prev.X == m.To.X && prev.Y == m.To.Y {
		sb.WriteString("同　")
	} else {
		file, rank := m.To.X+1, shogi.BoardSize-m.To.Y
		sb.WriteRune('１' + rune(file-1))
		sb.WriteRune(rankKanji[rank-1])
	}
	piece := b.At(m.From)
	sb.WriteString(kifNames[piece.Type])
	if m.IsDrop() {
		sb.WriteString("打")
		return sb.String()
	}
	if m.Promote {
		sb.WriteString("成")
	}
	fmt.Fprintf(&sb, "(%d%d)", m.From.X+1, shogi.BoardSize-m.From.Y)
	return sb.String()
}
