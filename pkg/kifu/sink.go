package kifu

import "fmt"

// Discard drops every record.
type Discard struct{}

func (Discard) Append(Record) error { return nil }
func (Discard) Close() error        { return nil }

// OpenSink opens a sink by kind: "parquet" (path is a file), "badger"
// (path is a directory) or "none".
func OpenSink(kind, path string) (Sink, error) {
	switch kind {
	case "parquet":
		return NewParquetSink(path, 4)
	case "badger":
		return OpenBadgerSink(path)
	case "none", "":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("kifu: unknown sink %q", kind)
	}
}

// ReadAll loads every record stored by a sink of the given kind.
func ReadAll(kind, path string) ([]Record, error) {
	switch kind {
	case "parquet":
		return ReadParquet(path, 4)
	case "badger":
		return ReadBadger(path)
	default:
		return nil, fmt.Errorf("kifu: cannot read sink %q", kind)
	}
}
