package config

import (
	"fmt"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
)

const (
	BACKEND_MEMORY = "memory"
	BACKEND_PEBBLE = "pebble"
	BACKEND_BADGER = "badger"
)

type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	Contraction ContractionConfig `toml:"contraction"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// StorageConfig selects the graph store backing. memory keeps every array on the heap,
// pebble and badger page the arrays out to a key-value store under Dir.
type StorageConfig struct {
	Backend         string `toml:"backend" validate:"oneof=memory pebble badger"`
	Dir             string `toml:"dir" validate:"required_unless=Backend memory"`
	PageSize        int    `toml:"page_size" validate:"gte=512"`
	BufferPoolPages int    `toml:"buffer_pool_pages" validate:"gte=8"`
	Compress        bool   `toml:"compress"`
}

type ContractionConfig struct {
	// MaxSettledNodes caps a single witness search. 0 means unlimited.
	MaxSettledNodes   int `toml:"max_settled_nodes" validate:"gte=0"`
	Workers           int `toml:"workers" validate:"gte=1"`
	EstimatedVertices int `toml:"estimated_vertices" validate:"gte=0"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	// ListenAddr serves /metrics while preprocessing runs. Empty disables it.
	ListenAddr string `toml:"listen_addr" validate:"omitempty,hostname_port"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:         BACKEND_MEMORY,
			Dir:             storage.DB_DIR,
			PageSize:        storage.DEFAULT_PAGE_SIZE,
			BufferPoolPages: storage.DEFAULT_BUFFER_POOL_PAGES,
			Compress:        true,
		},
		Contraction: ContractionConfig{
			MaxSettledNodes:   0,
			Workers:           runtime.NumCPU(),
			EstimatedVertices: 0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load decodes a TOML file on top of Default(). An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// every scoring worker pins one page at a time.
	if c.Storage.Backend != BACKEND_MEMORY && c.Contraction.Workers > c.Storage.BufferPoolPages {
		return fmt.Errorf("invalid config: %d contraction workers need at least as many buffer pool pages, got %d",
			c.Contraction.Workers, c.Storage.BufferPoolPages)
	}
	return nil
}
