package jobs

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

// binaryAndLockExtensions are never reviewable regardless of content: binary
// assets and lock files. Config/data formats (JSON/YAML/TOML) are
// deliberately absent here — they are reviewed like any other file.
var binaryAndLockExtensions = map[string]bool{
	".lock": true, ".sum": true,
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".ico": true, ".webp": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true,
}

// generatedFileSuffixes catch common generated/minified artifacts.
var generatedFileSuffixes = []string{".min.js", ".min.css", ".pb.go", ".gen.go", ".d.ts"}

// generatedBasenames are recognised lock files keyed by exact basename
// rather than extension (package-lock.json, Cargo.lock's sibling index).
var generatedBasenames = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"go.sum": true, "cargo.lock": true, "poetry.lock": true,
}

// FilterNonCodeSuggestions removes comments targeting binary files, lock
// files, or recognised generated-file patterns. Config and data files are
// never filtered here.
func FilterNonCodeSuggestions(logger *slog.Logger, comments []core.ReviewComment) []core.ReviewComment {
	filtered := make([]core.ReviewComment, 0, len(comments))
	for _, c := range comments {
		if isReviewableFile(c.Path) {
			filtered = append(filtered, c)
		} else if logger != nil {
			logger.Debug("filtering out comment on non-reviewable file",
				"file", c.Path, "line", c.Line, "severity", c.Severity)
		}
	}
	return filtered
}

// isReviewableFile returns false only for binary assets, lock files and
// generated-file patterns. Everything else -- including JSON/YAML/TOML
// config, and files with no recognised extension -- is reviewable.
func isReviewableFile(path string) bool {
	lower := strings.ToLower(path)
	lower = strings.TrimPrefix(lower, "./")
	base := filepath.Base(lower)

	if generatedBasenames[base] {
		return false
	}
	for _, suffix := range generatedFileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}

	ext := filepath.Ext(lower)
	if binaryAndLockExtensions[ext] {
		return false
	}
	return true
}
