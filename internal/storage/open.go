package storage

import (
	"errors"
	"os"
	"strings"

	logx "mindset/pkg/logx"
)

// DefaultPath is the task database used when neither the config nor
// DATABASE_PATH names one.
const DefaultPath = "tasks.db"

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultPath
		if env := strings.TrimSpace(os.Getenv("DATABASE_PATH")); env != "" {
			cfg.Path = env
		}
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
