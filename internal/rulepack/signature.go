package rulepack

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	dErrors "claimgate/pkg/domain-errors"
)

// ManifestName is the signature manifest file co-located with the packs.
const ManifestName = "signatures.yaml"

// Manifest records the expected content digest of every pack file.
type Manifest struct {
	Files map[string]string `yaml:"files"`
}

// Generate computes a sha256 digest for every pack file under dir and writes
// the manifest next to them. It returns the manifest that was written.
func Generate(dir string) (*Manifest, error) {
	files, err := packFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rule-pack files to sign under %s", dir)
	}

	manifest := &Manifest{Files: make(map[string]string, len(files))}
	for _, name := range files {
		digest, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		manifest.Files[name] = digest
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal signature manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write signature manifest: %w", err)
	}
	return manifest, nil
}

// Verify recomputes every pack digest and compares it against the manifest.
// A missing manifest, a pack without a manifest entry, a manifest entry
// without a pack, or a digest mismatch are all hard failures.
func Verify(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dErrors.Newf(dErrors.CodeSignatureMismatch,
				"signature manifest missing under %s", dir)
		}
		return fmt.Errorf("read signature manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return dErrors.Newf(dErrors.CodeSignatureMismatch,
			"signature manifest unreadable: %v", err)
	}

	files, err := packFiles(dir)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(files))
	for _, name := range files {
		seen[name] = true
		expected, ok := manifest.Files[name]
		if !ok {
			return dErrors.Newf(dErrors.CodeSignatureMismatch,
				"rule pack %s has no manifest entry", name)
		}
		actual, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if actual != expected {
			return dErrors.Newf(dErrors.CodeSignatureMismatch,
				"rule pack %s digest mismatch", name)
		}
	}

	for name := range manifest.Files {
		if !seen[name] {
			return dErrors.Newf(dErrors.CodeSignatureMismatch,
				"manifest entry %s has no pack file", name)
		}
	}
	return nil
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
