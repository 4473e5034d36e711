package vidset

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// Pipeline runs the four stages in fixed order: convert, download,
// extract, cleanup. Per-item failures within a stage never stop the
// pipeline; a stage that cannot start at all aborts the remaining stages.
type Pipeline struct {
	Config Config
	Log    zerolog.Logger

	// Stdin feeds the cleanup confirmation when AutoCleanup is off;
	// defaults to os.Stdin.
	Stdin io.Reader
}

// Run executes the full pipeline and returns the per-stage reports
// produced before any fatal error.
func (p *Pipeline) Run(ctx context.Context) ([]*Report, error) {
	var reports []*Report

	p.Log.Info().Msg("step 1: converting link list")
	report, err := ConvertLinks(p.Config.TSVFile, p.Config.LinksFile, p.Log)
	if err != nil {
		return reports, err
	}
	reports = append(reports, report)

	links, err := LoadLinks(p.Config.LinksFile)
	if err != nil {
		return reports, err
	}

	p.Log.Info().Int("entries", len(links)).Msg("step 2: downloading")
	report, err = NewDownloader(links, p.Config, p.Log).Run(ctx, nil)
	if err != nil {
		return reports, err
	}
	reports = append(reports, report)

	p.Log.Info().Msg("step 3: extracting")
	report, err = NewExtractor(p.Config, p.Log).Run(nil)
	if err != nil {
		return reports, err
	}
	reports = append(reports, report)

	p.Log.Info().Msg("step 4: cleaning up")
	cleaner := NewCleaner(p.Config, p.Log)
	cleaner.Stdin = p.Stdin
	report, err = cleaner.Run()
	if err != nil {
		return reports, err
	}
	reports = append(reports, report)

	return reports, nil
}

// TotalFailures sums per-item failures across stage reports. Strict mode
// turns a non-zero total into a non-zero process exit.
func TotalFailures(reports []*Report) int {
	failed := 0
	for _, r := range reports {
		failed += r.Failed
	}
	return failed
}
