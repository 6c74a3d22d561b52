package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewFileReturnsLines(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", "id,name\n1,alice\n2,bob\n")

	p, err := PreviewFile(dir, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", p.Filename)
	assert.Equal(t, []string{"id,name", "1,alice", "2,bob"}, p.Lines)
}

func TestPreviewFileRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	// PNG magic header, enough for filetype.Match to classify it as image/png.
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.png"), png, 0o644))

	_, err := PreviewFile(dir, "img.png")
	assert.Error(t, err)
}

func TestPreviewFileTruncatesAtMaxLines(t *testing.T) {
	dir := t.TempDir()
	body := ""
	for i := 0; i < maxPreviewLines+20; i++ {
		body += "row\n"
	}
	writeCSV(t, dir, "big.csv", body)

	p, err := PreviewFile(dir, "big.csv")
	require.NoError(t, err)
	assert.Len(t, p.Lines, maxPreviewLines)
}

func TestPreviewFileRejectsPathEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", "id\n1\n")

	outside := filepath.Join(filepath.Dir(dir), "secret.csv")
	writeCSV(t, filepath.Dir(dir), "secret.csv", "shh\n")
	defer os.Remove(outside)

	_, err := PreviewFile(dir, "../"+filepath.Base(outside))
	assert.Error(t, err)

	_, err = PreviewFile(dir, "../../etc/passwd")
	assert.Error(t, err)
}

func TestListSourcesFiltersToCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", "x\n1\n")
	writeCSV(t, dir, "b.csv", "x\n1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	sources, err := ListSources(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, sources)
}
