// Package rulepack loads the versioned detection term lists (allergens,
// banned claims, weasel vocabulary) consumed by the transforms, and verifies
// their signature manifest before anything is loaded into a pipeline.
package rulepack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allergen maps detection terms (including compound synonyms such as
// "peanut butter") to one canonical allergen name.
type Allergen struct {
	Canonical string   `yaml:"canonical"`
	Terms     []string `yaml:"terms"`
}

// Pack is the schema of a single rule-pack file. Files may populate any
// subset of the fields; Load merges all files in a directory into one Set.
type Pack struct {
	Version              int        `yaml:"version"`
	Allergens            []Allergen `yaml:"allergens"`
	ContaminationPhrases []string   `yaml:"contamination_phrases"`
	BannedClaims         []string   `yaml:"banned_claims"`
	WeaselWords          []string   `yaml:"weasel_words"`
}

// Set is the merged, read-only view over every pack file in a directory.
// A Set is built once at load time and swapped atomically on reload; it is
// never mutated while pipeline runs read it.
type Set struct {
	Allergens            []Allergen
	ContaminationPhrases []string
	BannedClaims         []string
	WeaselWords          []string
	Versions             map[string]int
}

// LoadOptions controls rule-pack loading.
type LoadOptions struct {
	// SkipVerification loads packs without checking the signature manifest.
	// Only acceptable in development; release builds must verify.
	SkipVerification bool
}

// Load reads every YAML pack file under dir into a merged Set. Unless
// opts.SkipVerification is set, the signature manifest is verified first and
// any mismatch aborts the load.
func Load(dir string, opts LoadOptions) (*Set, error) {
	if !opts.SkipVerification {
		if err := Verify(dir); err != nil {
			return nil, err
		}
	}

	files, err := packFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rule-pack files under %s", dir)
	}

	set := &Set{Versions: make(map[string]int)}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read rule pack %s: %w", name, err)
		}
		var pack Pack
		if err := yaml.Unmarshal(data, &pack); err != nil {
			return nil, fmt.Errorf("parse rule pack %s: %w", name, err)
		}
		set.Allergens = append(set.Allergens, pack.Allergens...)
		set.ContaminationPhrases = append(set.ContaminationPhrases, pack.ContaminationPhrases...)
		set.BannedClaims = append(set.BannedClaims, pack.BannedClaims...)
		set.WeaselWords = append(set.WeaselWords, pack.WeaselWords...)
		set.Versions[name] = pack.Version
	}
	return set, nil
}

// packFiles lists the YAML pack files in dir, excluding the signature
// manifest, in stable order.
func packFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule-pack dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ManifestName {
			continue
		}
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}
