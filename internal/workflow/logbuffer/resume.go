package logbuffer

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// ContentHash returns a hex-encoded blake3 digest of the file at path, used
// by `workflow resume` to skip re-reading per-task log files whose content
// hasn't changed since the last tail was computed.
func ContentHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// UnchangedSince reports whether the file at path still hashes to
// previousHash. A missing file or read error is reported as changed (false)
// so the caller re-reads defensively.
func UnchangedSince(path, previousHash string) bool {
	current, err := ContentHash(path)
	if err != nil {
		return false
	}
	return current == previousHash
}

const manifestFileName = ".resume-log-hashes"

// resumeManifest records the last-seen content hash of each task log file
// tailed during a `workflow resume`, keyed by file name rather than full
// path so the manifest travels with the run directory.
type resumeManifest map[string]string

func loadResumeManifest(runDir string) resumeManifest {
	m := resumeManifest{}
	f, err := os.Open(filepath.Join(runDir, manifestFileName))
	if err != nil {
		return m
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, hash, ok := strings.Cut(scanner.Text(), " ")
		if ok {
			m[name] = hash
		}
	}
	return m
}

func (m resumeManifest) save(runDir string) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s %s\n", name, m[name])
	}
	return os.WriteFile(filepath.Join(runDir, manifestFileName), []byte(sb.String()), 0o644)
}

// TailUnseenLogs scans runDir for *.log files left behind by a prior
// run and returns the tail of each whose content has changed since the last
// call, content-addressed via ContentHash/UnchangedSince rather than mtime
// so a log rewritten with identical bytes (e.g. a no-op retry) isn't
// re-printed. The manifest is persisted in runDir so a second `workflow
// resume` against the same run directory only surfaces what moved since the
// first.
func TailUnseenLogs(runDir string, tailLines int) (map[string][]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, err
	}
	manifest := loadResumeManifest(runDir)
	out := map[string][]string{}
	dirty := false

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		path := filepath.Join(runDir, e.Name())
		if prev, ok := manifest[e.Name()]; ok && UnchangedSince(path, prev) {
			continue
		}
		hash, err := ContentHash(path)
		if err != nil {
			continue
		}
		manifest[e.Name()] = hash
		dirty = true

		lines, err := tailFile(path, tailLines)
		if err != nil {
			continue
		}
		out[e.Name()] = lines
	}

	if dirty {
		_ = manifest.save(runDir)
	}
	return out, nil
}

func tailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		n = 15
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return lines, nil
	}
	return lines[len(lines)-n:], nil
}
