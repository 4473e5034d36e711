package vidset

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func tarBytes(t *testing.T, members []tarMember) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	tw := tar.NewWriter(buf)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: 0644, Size: int64(len(m.body))}
		if m.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Error(err.Error())
			t.FailNow()
		}
		if !m.dir {
			tw.Write([]byte(m.body))
		}
	}
	tw.Close()
	return buf.Bytes()
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()

	archives := map[string][]byte{
		"/sav_000.tar": tarBytes(t, []tarMember{
			{name: "sav_000", dir: true},
			{name: "sav_000/clip.mp4", body: "video 0"},
			{name: "sav_000/meta.txt", body: "meta 0"},
		}),
		"/sav_001.tar": tarBytes(t, []tarMember{
			{name: "sav_001", dir: true},
			{name: "sav_001/clip.mp4", body: "video 1"},
		}),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	cfg := testConfig(dir)
	cfg.TSVFile = filepath.Join(dir, "dataset_links.txt")
	cfg.LinksFile = filepath.Join(dir, "dataset_links.json")
	cfg.AutoCleanup = true

	tsv := "file_name\tcdn_link\n" +
		"sav_000.tar\t" + server.URL + "/sav_000.tar\n" +
		"sav_001.tar\t" + server.URL + "/sav_001.tar\n"
	if err := os.WriteFile(cfg.TSVFile, []byte(tsv), 0644); err != nil {
		t.Error(err.Error())
		t.FailNow()
	}

	p := Pipeline{Config: cfg, Log: zerolog.Nop()}
	reports, err := p.Run(context.Background())
	if err != nil {
		t.Error("pipeline failed: " + err.Error())
		t.FailNow()
	}
	if len(reports) != 4 {
		t.Errorf("expected 4 stage reports, got %d", len(reports))
	}
	if TotalFailures(reports) != 0 {
		t.Errorf("expected no per-item failures, got %d", TotalFailures(reports))
	}

	// videos survive, metadata does not, archives are untouched
	for _, keep := range []string{"sav_000/clip.mp4", "sav_001/clip.mp4"} {
		if _, err := os.Stat(filepath.Join(cfg.DatasetDir, keep)); err != nil {
			t.Errorf("%s missing after pipeline", keep)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.DatasetDir, "sav_000", "meta.txt")); err == nil {
		t.Error("meta.txt should have been cleaned up")
	}
	if _, err := os.Stat(filepath.Join(cfg.DownloadsDir, "sav_000.tar")); err != nil {
		t.Error("downloaded archive should still exist")
	}

	s, err := Summarize(cfg)
	if err != nil {
		t.Error(err.Error())
		t.FailNow()
	}
	if s.LinkCount != 2 || s.DownloadCount != 2 || s.Pending != 0 || s.VideoFiles != 2 {
		t.Errorf("unexpected summary after pipeline: %+v", s)
	}
}

func TestPipelineAbortsOnMissingTSV(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.TSVFile = filepath.Join(dir, "does_not_exist.txt")
	cfg.LinksFile = filepath.Join(dir, "links.json")

	p := Pipeline{Config: cfg, Log: zerolog.Nop()}
	reports, err := p.Run(context.Background())
	if err == nil {
		t.Error("missing TSV must abort the pipeline")
	}
	if len(reports) != 0 {
		t.Errorf("no stage should have completed, got %d reports", len(reports))
	}
	if _, err := os.Stat(cfg.DownloadsDir); err == nil {
		t.Error("downstream stages ran despite the fatal conversion error")
	}
}

func TestPipelineContinuesPastItemFailures(t *testing.T) {
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.tar" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write(tarBytes(t, []tarMember{{name: "clip.mp4", body: "video"}}))
	}))
	defer server.Close()

	cfg := testConfig(dir)
	cfg.TSVFile = filepath.Join(dir, "dataset_links.txt")
	cfg.LinksFile = filepath.Join(dir, "dataset_links.json")
	cfg.AutoCleanup = true

	tsv := "bad.tar\t" + server.URL + "/bad.tar\n" +
		"good.tar\t" + server.URL + "/good.tar\n"
	if err := os.WriteFile(cfg.TSVFile, []byte(tsv), 0644); err != nil {
		t.Error(err.Error())
		t.FailNow()
	}

	p := Pipeline{Config: cfg, Log: zerolog.Nop()}
	reports, err := p.Run(context.Background())
	if err != nil {
		t.Error("a failed download must not abort the pipeline: " + err.Error())
		t.FailNow()
	}
	if len(reports) != 4 {
		t.Errorf("all four stages should have run, got %d reports", len(reports))
	}
	if TotalFailures(reports) != 1 {
		t.Errorf("expected exactly 1 failure, got %d", TotalFailures(reports))
	}
	if _, err := os.Stat(filepath.Join(cfg.DatasetDir, "clip.mp4")); err != nil {
		t.Error("good archive should have made it through the whole pipeline")
	}
}
