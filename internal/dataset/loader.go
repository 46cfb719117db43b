package dataset

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/scrollviz/internal/logging"
)

// Loader parses each dataset once and keeps it for the lifetime of the
// article. Concurrent loads of the same file share one parse.
type Loader struct {
	baseDir string
	logger  *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*Table
}

func NewLoader(baseDir string, logger *zap.Logger) *Loader {
	return &Loader{
		baseDir: baseDir,
		logger:  logging.OrNop(logger),
		cache:   make(map[string]*Table),
	}
}

// Load returns the parsed dataset at path, relative to the loader's base
// directory unless absolute.
func (l *Loader) Load(path string) (*Table, error) {
	full := l.resolve(path)

	l.mu.RLock()
	t, ok := l.cache[full]
	l.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := l.group.Do(full, func() (interface{}, error) {
		l.mu.RLock()
		cached, ok := l.cache[full]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}

		t, err := ReadFile(full)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Dataset loaded",
			zap.String("path", full),
			zap.Int("rows", len(t.Rows)),
			zap.Strings("columns", t.Columns))

		l.mu.Lock()
		l.cache[full] = t
		l.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Cached reports how many datasets are held.
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(l.baseDir, path)
}
