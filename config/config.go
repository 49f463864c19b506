// Package config loads rowlined's runtime configuration from the
// environment, struct-tag driven the same way the rest of the pack
// does it.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type CoreConfig struct {
	DBPath     string `env:"DB_PATH, default=rowline.db"`
	ListenAddr string `env:"LISTEN_ADDR, default=0.0.0.0:8080"`
	UploadDir  string `env:"UPLOAD_DIR, default=/tmp/rowline-uploads"`
	Dev        bool   `env:"DEV, default=false"`

	// MaxUploadSize bounds an individual import file, enforced
	// incrementally while streaming the upload to disk rather than after
	// the fact.
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE, default=1073741824"` // 1GiB

	DefaultBranch string `env:"DEFAULT_BRANCH, default=main"`
}

type ImportConfig struct {
	// BatchSize is handed to the import worker pool as its batch size.
	// The pool does not split imports by it: each import is parsed whole
	// and all of its rows go to commitbuilder in a single Build call.
	BatchSize int `env:"BATCH_SIZE, default=5000"`

	// HashWorkers bounds the commitbuilder errgroup pool used once a
	// commit's total row count, across all its tables, reaches the
	// parallel-hashing threshold.
	HashWorkers int `env:"HASH_WORKERS, default=8"`
}

type WorkerConfig struct {
	Count             int           `env:"COUNT, default=4"`
	PollInterval      time.Duration `env:"POLL_INTERVAL, default=2s"`
	MaxRetries        uint          `env:"MAX_RETRIES, default=3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY, default=1s"`
}

type Config struct {
	Core   CoreConfig   `env:",prefix=ROWLINE_"`
	Import ImportConfig `env:",prefix=ROWLINE_IMPORT_"`
	Worker WorkerConfig `env:",prefix=ROWLINE_WORKER_"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
