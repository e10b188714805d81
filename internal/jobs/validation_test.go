package jobs

import (
	"log/slog"
	"os"
	"testing"

	"github.com/sevigo/graphwarden/internal/core"
)

func TestFilterNonCodeSuggestions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	comments := []core.ReviewComment{
		{Path: "main.go", Line: 1},
		{Path: "config.json", Line: 1},
		{Path: "config.yaml", Line: 1},
		{Path: "package-lock.json", Line: 1},
		{Path: "assets/logo.png", Line: 1},
		{Path: "dist/bundle.min.js", Line: 1},
	}

	got := FilterNonCodeSuggestions(logger, comments)

	keep := map[string]bool{}
	for _, c := range got {
		keep[c.Path] = true
	}
	if !keep["main.go"] || !keep["config.json"] || !keep["config.yaml"] {
		t.Errorf("expected code and config/data files to be kept, got %v", got)
	}
	if keep["package-lock.json"] || keep["assets/logo.png"] || keep["dist/bundle.min.js"] {
		t.Errorf("expected lock/binary/generated files to be dropped, got %v", got)
	}
}
