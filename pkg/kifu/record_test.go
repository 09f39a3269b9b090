package kifu_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"kifu/pkg/game"
	"kifu/pkg/kifu"
	"kifu/pkg/shogi"
)

func aigakariRecord(t *testing.T, id string) kifu.Record {
	t.Helper()
	rec := kifu.Record{
		GameID:     id,
		Winner:     shogi.White,
		Moves:      aigakariMoves,
		Plies:      len(aigakariMoves),
		StartedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	positions, err := rec.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	turn := shogi.Black
	for i := range positions {
		p, err := shogi.Pack256(&positions[i], turn)
		if err != nil {
			t.Fatalf("pack ply %d: %v", i, err)
		}
		rec.Positions = append(rec.Positions, p)
		turn = turn.Opponent()
	}
	return rec
}

func generation(n int32) *int32 { return &n }

// TestNewRecord verifies a decided game is packed position by position.
func TestNewRecord(t *testing.T) {
	// Black holds every remaining piece so all 40 can be packed.
	b, turn, _, err := shogi.ParseSFEN("8k/9/4p3K/R8/9/9/9/9/9 b R2B4G4S4N4L17P 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := game.FromPosition(b, turn, game.EvaluatorFunc(func([]shogi.Boards, shogi.Color) (int, error) {
		return 0, errors.New("evaluator should not be needed")
	}))
	if _, err := kifu.NewRecord(g, nil, time.Now(), time.Now()); err == nil {
		t.Fatalf("expected error for an undecided game")
	}
	st, err := g.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Winner != shogi.Black {
		t.Fatalf("expected black win, got %v", st)
	}

	rec, err := kifu.NewRecord(g, generation(3), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.GameID == "" || rec.Winner != shogi.Black || *rec.Generation != 3 {
		t.Fatalf("unexpected record header %+v", rec)
	}
	if rec.StartSFEN == "" {
		t.Fatalf("expected the custom start position to be kept")
	}
	if _, err := rec.Replay(); err != nil {
		t.Fatalf("replay from start: %v", err)
	}
	if rec.Plies != 1 || len(rec.Moves) != 1 || len(rec.Positions) != 2 {
		t.Fatalf("expected one ply and two positions, got %d/%d/%d", rec.Plies, len(rec.Moves), len(rec.Positions))
	}
	history := g.History()
	for i, p := range rec.Positions {
		got, side, err := shogi.Unpack256(p)
		if err != nil {
			t.Fatalf("unpack %d: %v", i, err)
		}
		wantSide := shogi.Black
		if i == 1 {
			wantSide = shogi.White
		}
		if side != wantSide {
			t.Fatalf("position %d: side %v want %v", i, side, wantSide)
		}
		if shogi.SFEN(&got, side, 1) != shogi.SFEN(&history[i], side, 1) {
			t.Fatalf("position %d differs after unpacking", i)
		}
	}
}

func appendConcurrently(t *testing.T, sink kifu.Sink, workers, perWorker int) []string {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	ids := make([]string, 0, workers*perWorker)
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			ids = append(ids, fmt.Sprintf("game-%02d-%02d", w, i))
		}
	}
	base := aigakariRecord(t, "")
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec := base
				rec.GameID = ids[w*perWorker+i]
				if i%2 == 0 {
					rec.Generation = generation(int32(w))
				}
				if err := sink.Append(rec); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}
	return ids
}

func checkRecords(t *testing.T, records []kifu.Record, ids []string) {
	t.Helper()
	if len(records) != len(ids) {
		t.Fatalf("expected %d records, got %d", len(ids), len(records))
	}
	want := aigakariRecord(t, "")
	var got []string
	for _, rec := range records {
		got = append(got, rec.GameID)
		if !reflect.DeepEqual(rec.Moves, want.Moves) {
			t.Fatalf("%s: moves %v", rec.GameID, rec.Moves)
		}
		if !reflect.DeepEqual(rec.Positions, want.Positions) {
			t.Fatalf("%s: positions differ", rec.GameID)
		}
		if rec.Winner != shogi.White || rec.Plies != len(want.Moves) {
			t.Fatalf("%s: header %v/%d", rec.GameID, rec.Winner, rec.Plies)
		}
		if !rec.FinishedAt.Equal(want.FinishedAt) {
			t.Fatalf("%s: finished at %v", rec.GameID, rec.FinishedAt)
		}
		var idx int
		fmt.Sscanf(rec.GameID[len(rec.GameID)-2:], "%d", &idx)
		if (idx%2 == 0) != (rec.Generation != nil) {
			t.Fatalf("%s: generation %v", rec.GameID, rec.Generation)
		}
	}
	sort.Strings(got)
	sort.Strings(ids)
	if !reflect.DeepEqual(got, ids) {
		t.Fatalf("ids differ: %v vs %v", got, ids)
	}
}

// TestParquetSink_ConcurrentAppend verifies concurrent appends all land
// intact in the file.
func TestParquetSink_ConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.parquet")
	sink, err := kifu.NewParquetSink(path, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ids := appendConcurrently(t, sink, 8, 4)
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Append(aigakariRecord(t, "late")); !errors.Is(err, kifu.ErrPersistence) {
		t.Fatalf("expected persistence error after close, got %v", err)
	}
	records, err := kifu.ReadParquet(path, 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	checkRecords(t, records, ids)
}

// TestBadgerSink_ConcurrentAppend verifies concurrent appends are stored
// and can be listed and fetched.
func TestBadgerSink_ConcurrentAppend(t *testing.T) {
	dir := t.TempDir()
	sink, err := kifu.OpenBadgerSink(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ids := appendConcurrently(t, sink, 8, 4)
	rec, ok, err := sink.Get(ids[0])
	if err != nil || !ok || rec.GameID != ids[0] {
		t.Fatalf("get %s: %v %v %+v", ids[0], ok, err, rec)
	}
	if _, ok, err := sink.Get("missing"); ok || err != nil {
		t.Fatalf("expected missing id, got %v %v", ok, err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	records, err := kifu.ReadBadger(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	checkRecords(t, records, ids)
}

// TestRecordSchema verifies the embedded schema lists every stored column.
func TestRecordSchema(t *testing.T) {
	schema, err := kifu.RecordSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	var names []string
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	want := []string{"game_id", "winner", "generation", "start_sfen", "moves", "positions", "plies", "started_at", "finished_at"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v want %v", names, want)
	}
}

// TestOpenSink verifies sink kinds are resolved by name.
func TestOpenSink(t *testing.T) {
	sink, err := kifu.OpenSink("none", "")
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if err := sink.Append(kifu.Record{}); err != nil {
		t.Fatalf("discard append: %v", err)
	}
	if _, err := kifu.OpenSink("sqlite", "x"); err == nil {
		t.Fatalf("expected error for unknown sink")
	}
}

// TestRecord_Ending verifies the final position is classified by what the
// loser could still play.
func TestRecord_Ending(t *testing.T) {
	tests := []struct {
		name string
		rec  kifu.Record
		want kifu.Ending
	}{
		{"moves left", aigakariRecord(t, "resign"), kifu.EndResign},
		{"rook mate", kifu.Record{StartSFEN: "8k/9/4p3K/R8/9/9/9/9/9 b - 1", Moves: []string{"9d9a"}}, kifu.EndCheckmate},
		{"only move repeats", kifu.Record{
			StartSFEN: "k8/9/9/9/9/9/9/2g6/K8 b - 1",
			Moves:     []string{"9i9h", "9a9b", "9h9i", "9b9a"},
		}, kifu.EndRepetition},
		{"first repetition", kifu.Record{
			StartSFEN: "k8/9/9/9/9/9/9/2g6/K8 b - 1",
			Moves:     []string{"9i9h", "9a9b"},
		}, kifu.EndResign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rec.Ending()
			if err != nil {
				t.Fatalf("ending: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
	if _, err := (kifu.Record{Moves: []string{"2g2f", "2g2f"}}).Ending(); err == nil {
		t.Fatal("expected an error for an illegal move")
	}
}
