package vidset

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

// Extractor unpacks every tar archive from DownloadsDir into DatasetDir.
// Source archives are never deleted. Members that would resolve outside
// DatasetDir are rejected and reported, never written.
type Extractor struct {
	DownloadsDir string
	DatasetDir   string
	Flatten      bool

	log zerolog.Logger
}

func NewExtractor(cfg Config, log zerolog.Logger) *Extractor {
	return &Extractor{
		DownloadsDir: cfg.DownloadsDir,
		DatasetDir:   cfg.DatasetDir,
		Flatten:      cfg.Flatten,
		log:          log,
	}
}

// Run extracts the selected archives. An empty selection means every
// *.tar in the downloads directory; selectors may be exact filenames or
// glob patterns. A corrupt archive is reported and the batch continues.
func (e *Extractor) Run(selectors []string) (*Report, error) {
	if err := os.MkdirAll(e.DatasetDir, 0755); err != nil {
		return nil, err
	}

	report := newReport("extract")
	archives, err := listTarFiles(e.DownloadsDir)
	if err != nil {
		return nil, err
	}
	archives = filterNames(archives, selectors)

	for _, name := range archives {
		src := filepath.Join(e.DownloadsDir, name)
		written, err := e.extractOne(src, report)
		if err != nil {
			e.log.Warn().Err(err).Str("archive", name).Msg("extraction failed")
			report.fail(err)
			continue
		}
		e.log.Info().Str("archive", name).Int("files", written).Msg("extracted")
		report.Succeeded++
	}

	e.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int64("bytes", report.Bytes).
		Msg("extract stage done")
	return report, nil
}

// extractOne walks the tar stream and writes regular files and directories
// under the dataset directory. Link members and traversal attempts are
// skipped. Returns how many files were written.
func (e *Extractor) extractOne(src string, report *Report) (int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, &ExtractionError{Archive: filepath.Base(src), Err: err}
	}
	defer f.Close()

	written := 0
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, &ExtractionError{Archive: filepath.Base(src), Err: err}
		}

		name := hdr.Name
		if e.Flatten {
			name = filepath.Base(name)
		}
		path := filepath.Join(e.DatasetDir, name)
		if filepath.IsAbs(hdr.Name) || !insideDir(path, e.DatasetDir) {
			perr := &PathTraversalError{Archive: filepath.Base(src), Member: hdr.Name}
			e.log.Warn().Err(perr).Msg("rejecting member")
			report.fail(perr)
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if e.Flatten {
				continue
			}
			if err := os.MkdirAll(path, 0755); err != nil {
				return written, &ExtractionError{Archive: filepath.Base(src), Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return written, &ExtractionError{Archive: filepath.Base(src), Err: err}
			}
			out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
			if err != nil {
				return written, &ExtractionError{Archive: filepath.Base(src), Err: err}
			}
			n, err := io.Copy(out, tr)
			out.Close()
			if err != nil {
				return written, &ExtractionError{Archive: filepath.Base(src), Err: err}
			}
			report.Bytes += n
			written++
		default:
			// symlinks and the like are not part of any dataset archive
			e.log.Debug().Str("member", hdr.Name).Msg("skipping non-regular member")
		}
	}
	return written, nil
}

// insideDir reports whether path is the directory itself or below it.
// Archives built with "tar -cf x.tar ." carry a "./" member that resolves
// to the directory itself; that is not an escape.
func insideDir(path, dir string) bool {
	dir = filepath.Clean(dir)
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

func listTarFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tar") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// filterNames keeps the names matched by any selector, either exactly or
// as a glob pattern. An empty selector list keeps everything.
func filterNames(names, selectors []string) []string {
	if len(selectors) == 0 {
		return names
	}
	var globs []glob.Glob
	for _, sel := range selectors {
		if g, err := glob.Compile(sel); err == nil {
			globs = append(globs, g)
		}
	}
	var kept []string
	for _, name := range names {
		for _, g := range globs {
			if g.Match(name) {
				kept = append(kept, name)
				break
			}
		}
	}
	return kept
}
