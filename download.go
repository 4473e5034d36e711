package vidset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Downloader fetches mapping entries into Dir. Entries whose file already
// exists non-empty are skipped without touching the network. Each URL is
// streamed to <name>.partial and renamed on success, so an interrupted
// download is never mistaken for a completed one.
type Downloader struct {
	Links     map[string]string
	Dir       string
	MaxFiles  int
	Parallel  int64
	RateLimit int64

	client *grab.Client
	log    zerolog.Logger
}

func NewDownloader(links map[string]string, cfg Config, log zerolog.Logger) *Downloader {
	return &Downloader{
		Links:     links,
		Dir:       cfg.DownloadsDir,
		MaxFiles:  cfg.MaxFiles,
		Parallel:  cfg.Parallel,
		RateLimit: cfg.RateLimit,
		client:    grab.NewClient(),
		log:       log,
	}
}

// Run downloads the selected entries. An empty selection means every entry
// in the mapping; selectors may be exact names or glob patterns. A failed
// download is reported and the batch continues.
func (d *Downloader) Run(ctx context.Context, selectors []string) (*Report, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return nil, err
	}

	report := newReport("download")
	names := d.selectNames(selectors, report)
	if d.MaxFiles > 0 && len(names) > d.MaxFiles {
		names = names[:d.MaxFiles]
	}

	parallel := d.Parallel
	if parallel < 1 {
		parallel = 1
	}
	sem := semaphore.NewWeighted(parallel)
	wg := sync.WaitGroup{}
	mu := sync.Mutex{}

	for _, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			// let in-flight downloads finish before handing the report back
			wg.Wait()
			return report, err
		}
		wg.Add(1)
		go func(name string) {
			defer sem.Release(1)
			defer wg.Done()

			skipped, err := d.fetch(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				d.log.Warn().Err(err).Str("name", name).Msg("download failed")
				report.fail(err)
			case skipped:
				report.Skipped++
			default:
				report.Succeeded++
			}
		}(name)
	}
	wg.Wait()

	d.log.Info().
		Int("succeeded", report.Succeeded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("download stage done")
	return report, nil
}

// selectNames resolves the selector list against the mapping in sorted
// order. Selectors matching nothing are counted as failures.
func (d *Downloader) selectNames(selectors []string, report *Report) []string {
	all := ListNames(d.Links)
	if len(selectors) == 0 {
		return all
	}

	seen := map[string]bool{}
	var names []string
	for _, sel := range selectors {
		if _, ok := d.Links[sel]; ok {
			if !seen[sel] {
				seen[sel] = true
				names = append(names, sel)
			}
			continue
		}
		g, err := glob.Compile(sel)
		if err != nil {
			report.fail(&DownloadError{Name: sel, Err: err})
			continue
		}
		matched := false
		for _, name := range all {
			if g.Match(name) {
				matched = true
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
		if !matched {
			report.fail(&DownloadError{Name: sel, Err: fmt.Errorf("not in link mapping")})
		}
	}
	return names
}

func (d *Downloader) fetch(ctx context.Context, name string) (skipped bool, err error) {
	dest := filepath.Join(d.Dir, name)
	if info, serr := os.Stat(dest); serr == nil && info.Size() > 0 {
		d.log.Debug().Str("name", name).Msg("already downloaded")
		return true, nil
	}

	// clean up partial file if an old one is laying around
	partial := dest + ".partial"
	os.RemoveAll(partial)

	req, err := grab.NewRequest(partial, d.Links[name])
	if err != nil {
		return false, &DownloadError{Name: name, Err: err}
	}
	req = req.WithContext(ctx)
	if d.RateLimit > 0 {
		req.RateLimiter = newBucketLimiter(d.RateLimit)
	}

	resp := d.client.Do(req)

	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
Loop:
	for {
		select {
		case <-t.C:
			d.log.Debug().
				Str("name", name).
				Int64("bytes", resp.BytesComplete()).
				Msgf("transferred %.2f%%", 100*resp.Progress())
		case <-resp.Done:
			break Loop
		}
	}

	if err := resp.Err(); err != nil {
		os.Remove(partial)
		return false, &DownloadError{Name: name, Err: err}
	}
	if err := os.Rename(partial, dest); err != nil {
		return false, &DownloadError{Name: name, Err: err}
	}

	d.log.Info().Str("name", name).Int64("bytes", resp.BytesComplete()).Msg("downloaded")
	return false, nil
}
