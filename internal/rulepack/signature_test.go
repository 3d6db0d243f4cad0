package rulepack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimgate/pkg/domain-errors"
)

func writePack(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const allergenPack = `version: 1
allergens:
  - canonical: peanuts
    terms: [peanut, peanut butter]
contamination_phrases:
  - may contain traces of
`

const claimsPack = `version: 2
banned_claims: [miracle, detox]
weasel_words: [amazing, revolutionary]
`

func TestGenerateAndVerify(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)
	writePack(t, dir, "claims.yaml", claimsPack)

	manifest, err := Generate(dir)
	require.NoError(t, err)
	assert.Len(t, manifest.Files, 2)
	assert.Len(t, manifest.Files["allergens.yaml"], 64) // sha256 hex

	assert.NoError(t, Verify(dir))
}

func TestVerify_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)
	writePack(t, dir, "claims.yaml", claimsPack)
	_, err := Generate(dir)
	require.NoError(t, err)

	// Append a line after signing
	f, err := os.OpenFile(filepath.Join(dir, "claims.yaml"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("  - snake oil\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = Verify(dir)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeSignatureMismatch, dErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "claims.yaml")
}

func TestVerify_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)

	err := Verify(dir)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeSignatureMismatch, dErrors.CodeOf(err))
}

func TestVerify_UnsignedPackFile(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)
	_, err := Generate(dir)
	require.NoError(t, err)

	// A pack added after signing must be rejected
	writePack(t, dir, "extra.yaml", claimsPack)

	err = Verify(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra.yaml")
}

func TestVerify_ManifestEntryWithoutFile(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)
	writePack(t, dir, "claims.yaml", claimsPack)
	_, err := Generate(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "claims.yaml")))

	err = Verify(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claims.yaml")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "allergens.yaml", allergenPack)
	writePack(t, dir, "claims.yaml", claimsPack)

	t.Run("refuses unsigned packs", func(t *testing.T) {
		_, err := Load(dir, LoadOptions{})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeSignatureMismatch, dErrors.CodeOf(err))
	})

	t.Run("loads after signing", func(t *testing.T) {
		_, err := Generate(dir)
		require.NoError(t, err)

		set, err := Load(dir, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, "peanuts", set.Allergens[0].Canonical)
		assert.Equal(t, []string{"miracle", "detox"}, set.BannedClaims)
		assert.Equal(t, 1, set.Versions["allergens.yaml"])
		assert.Equal(t, 2, set.Versions["claims.yaml"])
	})

	t.Run("skip verification flag bypasses manifest", func(t *testing.T) {
		unsigned := t.TempDir()
		writePack(t, unsigned, "allergens.yaml", allergenPack)
		set, err := Load(unsigned, LoadOptions{SkipVerification: true})
		require.NoError(t, err)
		assert.Len(t, set.Allergens, 1)
	})
}
