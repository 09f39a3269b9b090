package selfplay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kifu/pkg/eval"
)

// Config is the on-disk config.json. Paths are relative to the file's directory.
type Config struct {
	Engine        string `json:"engine"`
	Millis        int    `json:"millis"`
	Model         string `json:"model"`
	Lib           string `json:"lib"`
	Mode          string `json:"mode"`
	TopK          int    `json:"top_k"`
	Sink          string `json:"sink"`
	Output        string `json:"output"`
	Games         int    `json:"games"`
	Workers       int    `json:"workers"`
	Generation    *int32 `json:"generation"`
	Seed          int64  `json:"seed"`
	MaxPlies      int    `json:"max_plies"`
	ThinkBudgetMs int    `json:"think_budget_ms"`
	StartSFEN     string `json:"start_sfen"`
}

func FindConfigPath() (string, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	return findConfigFrom(cwd)
}

func findConfigFrom(start string) (string, string, error) {
	dir := start
	for {
		path := filepath.Join(dir, "config.json")
		if _, err := os.Stat(path); err == nil {
			return path, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("config.json not found from %s", start)
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Millis <= 0 {
		c.Millis = 100
	}
	if c.Mode == "" {
		c.Mode = "train"
	}
	if c.TopK <= 0 {
		c.TopK = eval.MaxTopK
	}
	if c.Sink == "" {
		c.Sink = "parquet"
	}
	if c.Output == "" {
		if c.Sink == "badger" {
			c.Output = "kifu.db"
		} else {
			c.Output = "selfplay.parquet"
		}
	}
	if c.Games <= 0 {
		c.Games = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Resolve makes relative paths absolute against root. Empty paths stay empty.
func (c Config) Resolve(root string) Config {
	c.Engine = resolvePath(c.Engine, root)
	c.Model = resolvePath(c.Model, root)
	c.Lib = resolvePath(c.Lib, root)
	c.Output = resolvePath(c.Output, root)
	return c
}

func resolvePath(p, root string) string {
	if p == "" || filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

// EvalOptions converts the config into evaluator options.
func (c Config) EvalOptions() (eval.Options, error) {
	mode, err := eval.ParseMode(c.Mode)
	if err != nil {
		return eval.Options{}, err
	}
	return eval.Options{
		Mode:       mode,
		K:          c.TopK,
		ModelPath:  c.Model,
		LibPath:    c.Lib,
		EnginePath: c.Engine,
		MoveTimeMs: c.Millis,
	}, nil
}

// ThinkBudget is the cumulative per-side thinking allowance; zero is unlimited.
func (c Config) ThinkBudget() time.Duration {
	return time.Duration(c.ThinkBudgetMs) * time.Millisecond
}
