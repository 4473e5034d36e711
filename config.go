package vidset

import (
	"errors"

	"github.com/kkyr/fig"
)

const EnvPrefix = "VIDSET"

// Config carries every knob the stages need. There are no package-level
// defaults: each stage receives the config (or the fields it cares about)
// explicitly.
type Config struct {
	TSVFile      string `fig:"tsv_file" default:"dataset_links.txt"`
	LinksFile    string `fig:"links_file" default:"dataset_links.json"`
	DownloadsDir string `fig:"downloads_dir" default:"downloads"`
	DatasetDir   string `fig:"dataset_dir" default:"dataset"`

	// MaxFiles caps how many mapping entries the downloader touches.
	// Zero means no cap.
	MaxFiles int `fig:"max_files"`

	// Parallel bounds simultaneous downloads. The default of 1 keeps the
	// pipeline strictly sequential.
	Parallel int64 `fig:"parallel" default:"1"`

	// RateLimit caps download bandwidth in bytes per second. Zero means
	// unlimited.
	RateLimit int64 `fig:"rate_limit"`

	// Flatten drops archive-internal directories during extraction and
	// writes every member directly under DatasetDir.
	Flatten bool `fig:"flatten"`

	KeepExtensions []string `fig:"keep_extensions" default:"[.mp4]"`
	AutoCleanup    bool     `fig:"auto_cleanup"`
	DryRun         bool     `fig:"dry_run"`

	// Strict makes per-item failures count against the process exit code.
	// The default only fails the run on fatal stage errors.
	Strict bool `fig:"strict"`

	Debug bool `fig:"debug"`
}

// LoadConfig loads vidset.yaml from the given path (or the working
// directory when path is empty) plus environment variables with the
// VIDSET_ prefix. A missing config file is fine: defaults and the
// environment still apply.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	dirs := []string{"."}
	if path != "" {
		dirs = []string{path}
	}
	err := fig.Load(&cfg, fig.File("vidset.yaml"), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		err = fig.Load(&cfg, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	return cfg, err
}
