package vidset

import "fmt"

// MalformedLineError marks a TSV line that has a tab but is missing the
// name or the url. The converter skips the line and keeps going.
type MalformedLineError struct {
	Line int
	Text string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line %d: %q", e.Line, e.Text)
}

// DownloadError marks a single failed download. The batch continues past it.
type DownloadError struct {
	Name string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Name, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError marks a corrupt or unreadable archive. Remaining archives
// are still processed.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PathTraversalError marks an archive member whose resolved path would
// escape the dataset directory. The member is never written.
type PathTraversalError struct {
	Archive string
	Member  string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("%s: member %q escapes the target directory", e.Archive, e.Member)
}

// Report accumulates per-item outcomes for one stage. Per-item errors are
// collected here, summarized at stage end, and never abort the batch;
// only stage-level fatal errors are returned as plain errors.
type Report struct {
	Stage     string
	Succeeded int
	Skipped   int
	Failed    int

	// Bytes is stage-specific: bytes reclaimed for cleanup, bytes written
	// for extraction.
	Bytes int64

	Errors []error
}

func newReport(stage string) *Report {
	return &Report{Stage: stage}
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// OK reports whether the stage finished without per-item failures.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d succeeded, %d skipped, %d failed",
		r.Stage, r.Succeeded, r.Skipped, r.Failed)
}
