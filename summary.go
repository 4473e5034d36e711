package vidset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Summary is a read-only snapshot of the pipeline state on disk. Missing
// directories or a missing mapping show up as zero counts, not errors.
type Summary struct {
	LinkCount     int   `json:"link_count"`
	DownloadCount int   `json:"download_count"`
	DownloadBytes int64 `json:"download_bytes"`
	DatasetFiles  int   `json:"dataset_files"`
	DatasetBytes  int64 `json:"dataset_bytes"`
	VideoFiles    int   `json:"video_files"`
	Pending       int   `json:"pending"`
}

// Summarize inspects the link mapping and both working directories.
func Summarize(cfg Config) (*Summary, error) {
	s := &Summary{}

	links, err := LoadLinks(cfg.LinksFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	s.LinkCount = len(links)

	s.DownloadCount, s.DownloadBytes = countFiles(cfg.DownloadsDir, nil)
	keep := keepSet(cfg.KeepExtensions)
	s.DatasetFiles, s.DatasetBytes = countFiles(cfg.DatasetDir, nil)
	s.VideoFiles, _ = countFiles(cfg.DatasetDir, keep)

	for name := range links {
		info, err := os.Stat(filepath.Join(cfg.DownloadsDir, name))
		if err != nil || info.Size() == 0 {
			s.Pending++
		}
	}

	return s, nil
}

// countFiles walks dir counting regular files and their total size,
// restricted to the given extension set when one is supplied. Partial
// downloads are not counted.
func countFiles(dir string, extensions map[string]bool) (count int, bytes int64) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".partial") {
			return nil
		}
		if extensions != nil && !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if info, err := d.Info(); err == nil {
			count++
			bytes += info.Size()
		}
		return nil
	})
	return count, bytes
}
