// Package config owns process configuration and the runtime data layout.
// Everything comes from the environment; the loaded value is passed down
// explicitly rather than read ambiently by other packages.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	DataDir       string
	Addr          string
	MongoURI      string
	MongoDatabase string
	ModelsPath    string
	OpenRouterKey string
	// MockAdapters swaps every model adapter for the deterministic mock,
	// so runs work without network access or API keys.
	MockAdapters bool
}

func Load() Config {
	cfg := Config{
		DataDir:       envOr("QUIZBENCH_DATA_DIR", "runtime-data"),
		Addr:          envOr("ADDR", ":8080"),
		MongoURI:      strings.TrimSpace(os.Getenv("MONGODB_URI")),
		MongoDatabase: envOr("MONGODB_DB_NAME", "quizbench"),
		ModelsPath:    envOr("QUIZBENCH_MODELS", "models.yaml"),
		OpenRouterKey: strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		MockAdapters:  strings.EqualFold(strings.TrimSpace(os.Getenv("QUIZBENCH_ENV")), "mock"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// Paths is the on-disk layout under the data root. The legacy sqlite file,
// the migration marker and the flat-file store all hang off it.
type Paths struct {
	Root        string
	DBDir       string
	LegacyDB    string
	Marker      string
	FlatFileDir string
	LogsDir     string
	QuizzesDir  string
	AssetsDir   string
}

func NewPaths(root string) Paths {
	dbDir := filepath.Join(root, "db")
	return Paths{
		Root:        root,
		DBDir:       dbDir,
		LegacyDB:    filepath.Join(dbDir, "quizbench.sqlite3"),
		Marker:      filepath.Join(dbDir, ".migrated"),
		FlatFileDir: filepath.Join(root, "flatfile"),
		LogsDir:     filepath.Join(root, "logs"),
		QuizzesDir:  filepath.Join(root, "quizzes"),
		AssetsDir:   filepath.Join(root, "assets"),
	}
}

func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, p.DBDir, p.FlatFileDir, p.LogsDir, p.QuizzesDir, p.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// RunLogPath is the per-run append-only log file.
func (p Paths) RunLogPath(runID string) string {
	return filepath.Join(p.LogsDir, runID+".log")
}

// RunAssetsDir holds every artifact generated for one run.
func (p Paths) RunAssetsDir(runID string) string {
	return filepath.Join(p.AssetsDir, runID)
}
