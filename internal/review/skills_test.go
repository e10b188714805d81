package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSkills_MissingDirectoryIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	skills, err := LoadSkills(dir)
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestLoadSkills_ReadsYAMLFilesSortedByName(t *testing.T) {
	root := t.TempDir()
	skillsDir := filepath.Join(root, ".graphwarden", "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "b-second.yaml"), []byte(
		"glob: \"*.ts\"\nbody: \"Use strict null checks.\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "a-first.yml"), []byte(
		"glob: \"*.go\"\nbody: \"Follow effective Go error wrapping.\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "ignored.txt"), []byte("not yaml"), 0o644))

	skills, err := LoadSkills(root)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "*.go", skills[0].Glob)
	assert.Equal(t, "*.ts", skills[1].Glob)
}

func TestLoadSkills_SkipsEntriesWithoutGlob(t *testing.T) {
	root := t.TempDir()
	skillsDir := filepath.Join(root, ".graphwarden", "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "noglob.yaml"), []byte("body: \"orphaned\"\n"), 0o644))

	skills, err := LoadSkills(root)
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestMatchingSkills_MatchesByGlobAndBaseName(t *testing.T) {
	skills := []Skill{
		{Glob: "*.go", Body: "go rule"},
		{Glob: "internal/api/*.ts", Body: "api rule"},
	}
	changed := []string{"internal/foo/bar.go", "internal/api/routes.ts"}

	matched := MatchingSkills(skills, changed)
	require.Len(t, matched, 2)
	assert.Equal(t, "go rule", matched[0].Body)
	assert.Equal(t, "api rule", matched[1].Body)
}

func TestMatchingSkills_NoMatchReturnsEmpty(t *testing.T) {
	skills := []Skill{{Glob: "*.py", Body: "python rule"}}
	matched := MatchingSkills(skills, []string{"main.go"})
	assert.Empty(t, matched)
}
