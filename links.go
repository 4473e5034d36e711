package vidset

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ConvertLinks reads a tab-separated link list (name<TAB>url, one per
// line, optionally with a header row) and writes it as a JSON mapping of
// name to url. The output file is overwritten wholesale. Duplicate names
// keep the last url seen.
//
// A missing input file is fatal. Malformed lines are reported in the
// returned Report and skipped.
func ConvertLinks(tsvPath, jsonPath string, log zerolog.Logger) (*Report, error) {
	f, err := os.Open(tsvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	links, report := parseLinks(f, log)

	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return report, err
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return report, err
	}

	log.Info().Int("entries", len(links)).Str("file", jsonPath).Msg("converted link list")
	return report, nil
}

func parseLinks(r io.Reader, log zerolog.Logger) (map[string]string, *Report) {
	report := newReport("convert")
	links := map[string]string{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	first := true
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		tab := strings.Index(line, "\t")
		if tab < 0 {
			report.Skipped++
			continue
		}
		name := strings.TrimSpace(line[:tab])
		url := strings.TrimSpace(line[tab+1:])

		// a first row with a non-empty second field that is not an
		// absolute URL is a header; an empty field is a malformed line
		if first && url != "" && !isHTTPURL(url) {
			first = false
			report.Skipped++
			continue
		}
		first = false

		if name == "" || url == "" {
			err := &MalformedLineError{Line: lineNo, Text: line}
			log.Warn().Err(err).Msg("skipping line")
			report.fail(err)
			continue
		}
		links[name] = url
		report.Succeeded++
	}

	return links, report
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// LoadLinks reads the JSON mapping written by ConvertLinks.
func LoadLinks(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	links := map[string]string{}
	err = json.Unmarshal(data, &links)
	return links, err
}

// ListNames returns the mapping keys in sorted order so that runs are
// deterministic.
func ListNames(links map[string]string) []string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
