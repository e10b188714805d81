package retriever

import (
	"regexp"
	"strconv"
	"strings"
)

// fileDiff is one file's contribution to a raw unified diff: its post-state
// path and the post-state line numbers that are '+' lines in its hunks.
type fileDiff struct {
	path       string
	addedLines map[int]struct{}
}

var newFileHeaderRegex = regexp.MustCompile(`^\+\+\+ b/(.+)$`)
var hunkStartRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// parseUnifiedDiff extracts, per file, the post-state path and the set of
// added line numbers, by matching "--- a/…" / "+++ b/…" header pairs and
// walking each hunk's '+'/' '/'-' lines. Deleted files ("+++ /dev/null")
// contribute no symbols and are skipped.
func parseUnifiedDiff(raw string) []fileDiff {
	var files []fileDiff
	var current *fileDiff
	currentLine := -1

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			m := newFileHeaderRegex.FindStringSubmatch(line)
			if len(m) != 2 || m[1] == "/dev/null" {
				current = nil
				currentLine = -1
				continue
			}
			files = append(files, fileDiff{path: m[1], addedLines: map[int]struct{}{}})
			current = &files[len(files)-1]
			currentLine = -1

		case strings.HasPrefix(line, "@@"):
			if current == nil {
				continue
			}
			m := hunkStartRegex.FindStringSubmatch(line)
			if len(m) != 2 {
				currentLine = -1
				continue
			}
			start, err := strconv.Atoi(m[1])
			if err != nil {
				currentLine = -1
				continue
			}
			currentLine = start

		case current != nil && currentLine != -1:
			switch {
			case strings.HasPrefix(line, "+"):
				current.addedLines[currentLine] = struct{}{}
				currentLine++
			case strings.HasPrefix(line, " "):
				currentLine++
			case strings.HasPrefix(line, "-"):
				// removed line: present pre-state only, doesn't advance the
				// post-state counter.
			}
		}
	}

	return files
}

// changedPaths returns just the post-state file paths touched by raw.
func changedPaths(raw string) []string {
	files := parseUnifiedDiff(raw)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths
}
