package vidset

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Cleaner deletes every regular file under Dir whose extension is not in
// the keep set, then prunes directories left empty. Deletion is
// irreversible, so unless AutoConfirm or DryRun is set the run stops for
// an explicit confirmation first.
type Cleaner struct {
	Dir            string
	KeepExtensions []string
	AutoConfirm    bool
	DryRun         bool

	// Stdin is where confirmation answers are read from; defaults to
	// os.Stdin.
	Stdin io.Reader

	log zerolog.Logger
}

func NewCleaner(cfg Config, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		Dir:            cfg.DatasetDir,
		KeepExtensions: cfg.KeepExtensions,
		AutoConfirm:    cfg.AutoCleanup,
		DryRun:         cfg.DryRun,
		log:            log,
	}
}

// Run walks the dataset directory and removes files outside the keep set.
// The extension match is case-insensitive. Directories are never deleted
// while non-empty; empty ones are pruned afterwards.
func (c *Cleaner) Run() (*Report, error) {
	report := newReport("cleanup")

	if _, err := os.Stat(c.Dir); os.IsNotExist(err) {
		c.log.Warn().Str("dir", c.Dir).Msg("dataset directory does not exist")
		return report, nil
	}

	keep := keepSet(c.KeepExtensions)
	var candidates []string
	var candidateBytes int64
	kept := 0
	err := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if keep[strings.ToLower(filepath.Ext(path))] {
			kept++
			return nil
		}
		if info, err := d.Info(); err == nil {
			candidateBytes += info.Size()
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return report, err
	}

	c.log.Info().Int("keep", kept).Int("remove", len(candidates)).Msg("scanned dataset")
	if len(candidates) == 0 {
		return report, nil
	}

	if c.DryRun {
		for i, path := range candidates {
			if i == 20 {
				c.log.Info().Msgf("... and %d more files", len(candidates)-20)
				break
			}
			c.log.Info().Str("file", path).Msg("would remove")
		}
		report.Skipped = len(candidates)
		return report, nil
	}

	if !c.AutoConfirm {
		if !c.confirm(len(candidates), candidateBytes) {
			c.log.Info().Msg("cleanup cancelled")
			report.Skipped = len(candidates)
			return report, nil
		}
	}

	for _, path := range candidates {
		info, _ := os.Stat(path)
		if err := os.Remove(path); err != nil {
			c.log.Warn().Err(err).Str("file", path).Msg("could not remove")
			report.fail(err)
			continue
		}
		if info != nil {
			report.Bytes += info.Size()
		}
		report.Succeeded++
	}

	pruned := pruneEmptyDirs(c.Dir)
	c.log.Info().
		Int("removed", report.Succeeded).
		Int64("bytes", report.Bytes).
		Int("pruned_dirs", pruned).
		Msg("cleanup stage done")
	return report, nil
}

func (c *Cleaner) confirm(count int, size int64) bool {
	fmt.Printf("This will delete %d files (%.1f MB)\n", count, float64(size)/(1024*1024))
	fmt.Print("Continue? (y/N): ")

	in := c.Stdin
	if in == nil {
		in = os.Stdin
	}
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes" || answer == ""
}

func keepSet(extensions []string) map[string]bool {
	keep := map[string]bool{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		keep[ext] = true
	}
	return keep
}

// pruneEmptyDirs removes directories left empty after cleanup, deepest
// first. The root itself is kept.
func pruneEmptyDirs(root string) int {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	pruned := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			if os.Remove(dir) == nil {
				pruned++
			}
		}
	}
	return pruned
}
