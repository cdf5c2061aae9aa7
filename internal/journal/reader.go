package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Files returns every journal file in dir, rotated segments first (oldest
// first) and the active file last.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	hasActive := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case name == activeName:
			hasActive = true
		case strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix):
			segments = append(segments, name)
		}
	}
	sort.Strings(segments)

	files := make([]string, 0, len(segments)+1)
	for _, s := range segments {
		files = append(files, filepath.Join(dir, s))
	}
	if hasActive {
		files = append(files, filepath.Join(dir, activeName))
	}
	return files, nil
}

// ReadResult holds the records read from a journal directory.
type ReadResult struct {
	Records []Record
	// Malformed counts lines that could not be decoded, such as a final line
	// cut short by a crash.
	Malformed int
}

// ReadAll reads every record in dir in write order.
func ReadAll(dir string) (*ReadResult, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	result := &ReadResult{}
	for _, path := range files {
		if err := readFile(path, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func readFile(path string, into *ReadResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			into.Malformed++
			continue
		}
		into.Records = append(into.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
