package selfplay_test

import (
	"os"
	"path/filepath"
	"testing"

	"kifu/pkg/eval"
	"kifu/pkg/selfplay"
)

// TestFindConfigPath verifies config.json is found in a parent directory.
func TestFindConfigPath(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"games": 3}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Chdir(nested)

	path, dir, err := selfplay.FindConfigPath()
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(dir)
	if got != want || filepath.Base(path) != "config.json" {
		t.Fatalf("got %s in %s, want dir %s", path, dir, root)
	}
}

// TestLoadConfig verifies decoding, defaults and path resolution.
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"engine": "engines/yane", "model": "/models/gen3.onnx", "mode": "play", "sink": "badger", "generation": 3, "workers": 4}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := selfplay.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg = cfg.WithDefaults().Resolve(dir)

	if cfg.Engine != filepath.Join(dir, "engines/yane") {
		t.Fatalf("engine not resolved: %s", cfg.Engine)
	}
	if cfg.Model != "/models/gen3.onnx" {
		t.Fatalf("absolute model path changed: %s", cfg.Model)
	}
	if cfg.Output != filepath.Join(dir, "kifu.db") {
		t.Fatalf("unexpected badger output %s", cfg.Output)
	}
	if cfg.Generation == nil || *cfg.Generation != 3 {
		t.Fatalf("generation not decoded: %v", cfg.Generation)
	}
	if cfg.Games != 1 || cfg.Workers != 4 || cfg.Millis != 100 || cfg.TopK != eval.MaxTopK {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	opts, err := cfg.EvalOptions()
	if err != nil {
		t.Fatalf("eval options: %v", err)
	}
	if opts.Mode != eval.ModePlay || opts.EnginePath != cfg.Engine {
		t.Fatalf("unexpected eval options %+v", opts)
	}
}

// TestConfig_BadMode verifies an unknown mode is rejected.
func TestConfig_BadMode(t *testing.T) {
	cfg := selfplay.Config{Mode: "blitz"}.WithDefaults()
	if _, err := cfg.EvalOptions(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

// TestLoadConfig_Invalid verifies malformed JSON is reported.
func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"games": "many"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := selfplay.LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
