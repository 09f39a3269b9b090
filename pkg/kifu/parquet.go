package kifu

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"kifu/pkg/shogi"
)

type positionRow struct {
	W0 int64 `parquet:"name=w0, type=INT64"`
	W1 int64 `parquet:"name=w1, type=INT64"`
	W2 int64 `parquet:"name=w2, type=INT64"`
	W3 int64 `parquet:"name=w3, type=INT64"`
}

type gameRow struct {
	GameID     string        `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Winner     string        `parquet:"name=winner, type=BYTE_ARRAY, convertedtype=UTF8"`
	Generation *int32        `parquet:"name=generation, type=INT32, repetitiontype=OPTIONAL"`
	StartSFEN  string        `parquet:"name=start_sfen, type=BYTE_ARRAY, convertedtype=UTF8"`
	Moves      []string      `parquet:"name=moves, type=LIST, valuetype=BYTE_ARRAY, valueconvertedtype=UTF8"`
	Positions  []positionRow `parquet:"name=positions, type=LIST"`
	Plies      int32         `parquet:"name=plies, type=INT32"`
	StartedAt  int64         `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	FinishedAt int64         `parquet:"name=finished_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

type ParquetSchema struct {
	Name   string         `json:"name"`
	Fields []ParquetField `json:"fields"`
}

type ParquetField struct {
	Name     string      `json:"name"`
	Type     interface{} `json:"type"`
	Nullable bool        `json:"nullable"`
}

//go:embed schema/record_schema.json
var recordSchemaJSON []byte

// RecordSchema returns the published column layout of the parquet sink.
func RecordSchema() (ParquetSchema, error) {
	var schema ParquetSchema
	if err := json.Unmarshal(recordSchemaJSON, &schema); err != nil {
		return ParquetSchema{}, err
	}
	return schema, nil
}

func toRow(r Record) gameRow {
	positions := make([]positionRow, len(r.Positions))
	for i, p := range r.Positions {
		positions[i] = positionRow{
			W0: int64(p.Words[0]),
			W1: int64(p.Words[1]),
			W2: int64(p.Words[2]),
			W3: int64(p.Words[3]),
		}
	}
	return gameRow{
		GameID:     r.GameID,
		Winner:     r.Winner.String(),
		Generation: r.Generation,
		StartSFEN:  r.StartSFEN,
		Moves:      r.Moves,
		Positions:  positions,
		Plies:      int32(r.Plies),
		StartedAt:  r.StartedAt.UnixMilli(),
		FinishedAt: r.FinishedAt.UnixMilli(),
	}
}

func fromRow(row gameRow) (Record, error) {
	winner, err := shogi.ParseColor(row.Winner)
	if err != nil {
		return Record{}, fmt.Errorf("game %s: %w", row.GameID, err)
	}
	positions := make([]shogi.Packed256, len(row.Positions))
	for i, p := range row.Positions {
		positions[i] = shogi.Packed256{Words: [4]uint64{
			uint64(p.W0), uint64(p.W1), uint64(p.W2), uint64(p.W3),
		}}
	}
	return Record{
		GameID:     row.GameID,
		Winner:     winner,
		Generation: row.Generation,
		StartSFEN:  row.StartSFEN,
		Moves:      row.Moves,
		Positions:  positions,
		Plies:      int(row.Plies),
		StartedAt:  time.UnixMilli(row.StartedAt).UTC(),
		FinishedAt: time.UnixMilli(row.FinishedAt).UTC(),
	}, nil
}

// ParquetSink appends games to a single SNAPPY-compressed parquet file.
// Rows become durable when the sink is closed.
type ParquetSink struct {
	mu     sync.Mutex
	file   source.ParquetFile
	writer *writer.ParquetWriter
	closed bool
}

// NewParquetSink creates path, truncating any existing file.
func NewParquetSink(path string, parallel int64) (*ParquetSink, error) {
	schema, err := RecordSchema()
	if err != nil {
		return nil, err
	}
	if err := checkColumns(schema, reflect.TypeOf(gameRow{})); err != nil {
		return nil, err
	}
	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(gameRow), parallel)
	if err != nil {
		fileWriter.Close()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY
	return &ParquetSink{file: fileWriter, writer: parquetWriter}, nil
}

func (s *ParquetSink) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: sink closed", ErrPersistence)
	}
	if err := s.writer.Write(toRow(r)); err != nil {
		return fmt.Errorf("%w: game %s: %w", ErrPersistence, r.GameID, err)
	}
	return nil
}

func (s *ParquetSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	stopErr := s.writer.WriteStop()
	closeErr := s.file.Close()
	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// ReadParquet loads every game stored by a ParquetSink.
func ReadParquet(path string, parallel int64) ([]Record, error) {
	fileReader, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(gameRow), parallel)
	if err != nil {
		return nil, err
	}
	defer parquetReader.ReadStop()

	total := int(parquetReader.GetNumRows())
	records := make([]Record, 0, total)
	const batchSize = 1024
	for read := 0; read < total; {
		n := batchSize
		if total-read < n {
			n = total - read
		}
		batch := make([]gameRow, n)
		if err := parquetReader.Read(&batch); err != nil {
			return nil, err
		}
		for _, row := range batch {
			rec, err := fromRow(row)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		read += n
	}
	return records, nil
}

// checkColumns requires row's parquet columns to match schema one for one,
// in order and with the same nullability, so files written by the sink keep
// the published layout.
func checkColumns(schema ParquetSchema, row reflect.Type) error {
	if row.NumField() != len(schema.Fields) {
		return fmt.Errorf("kifu: schema %s has %d columns, rows have %d", schema.Name, len(schema.Fields), row.NumField())
	}
	for i, want := range schema.Fields {
		tag := parquetTag(row.Field(i).Tag.Get("parquet"))
		if tag["name"] != want.Name {
			return fmt.Errorf("kifu: schema %s column %d is %q, rows have %q", schema.Name, i, want.Name, tag["name"])
		}
		if optional := tag["repetitiontype"] == "OPTIONAL"; optional != want.Nullable {
			return fmt.Errorf("kifu: schema %s column %q nullable=%v, rows have %v", schema.Name, want.Name, want.Nullable, optional)
		}
	}
	return nil
}

// parquetTag splits a parquet-go struct tag into its key=value settings.
func parquetTag(tag string) map[string]string {
	settings := make(map[string]string)
	for _, part := range strings.Split(tag, ",") {
		if key, value, ok := strings.Cut(strings.TrimSpace(part), "="); ok {
			settings[strings.ToLower(key)] = value
		}
	}
	return settings
}
