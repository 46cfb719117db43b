package director

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/scrollviz/internal/system"
)

// StatesDir is where state dumps are written by default
var StatesDir = filepath.Join("internal", "states")

// GenerateStatesPath creates a timestamped state dump filename
func GenerateStatesPath() string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(StatesDir, fmt.Sprintf("states_%s.yaml", timestamp))
}

// FindLatestArticle finds the most recently modified article in dir
func FindLatestArticle(dir string) (string, error) {
	path, err := system.FindLatestFile(dir, ".yaml", ".yml")
	if err != nil {
		return "", fmt.Errorf("no article found: %w", err)
	}
	return path, nil
}

// EnsureDir creates the parent directory of path
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
