package review

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a plain-text rule snippet keyed by a file glob: when a changed
// file in a review matches Glob, Body is injected into the prompt.
type Skill struct {
	Glob string `yaml:"glob"`
	Body string `yaml:"body"`
}

// LoadSkills reads every *.yml/*.yaml file under <repoPath>/.graphwarden/skills,
// the same per-repo customization directory .graphwarden.yml already lives
// in. A missing directory is not an error — most repositories carry no
// custom skills, same as a missing .graphwarden.yml falling back to
// defaults in internal/config.LoadRepoConfig.
func LoadSkills(repoPath string) ([]Skill, error) {
	dir := filepath.Join(repoPath, ".graphwarden", "skills")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var skills []Skill
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var s Skill
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if s.Glob == "" {
			continue
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// MatchingSkills returns the subset of skills whose glob matches at least
// one of changedFiles, in their original order.
func MatchingSkills(skills []Skill, changedFiles []string) []Skill {
	var matched []Skill
	for _, s := range skills {
		for _, f := range changedFiles {
			ok, err := filepath.Match(s.Glob, f)
			if err != nil {
				continue
			}
			if !ok {
				// filepath.Match requires a pattern segment count match;
				// also try against the base name for simple extension globs.
				ok, _ = filepath.Match(s.Glob, filepath.Base(f))
			}
			if ok {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}
