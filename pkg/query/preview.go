package query

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// FilePreview is the response to a read_file request: a CSV source's
// first lines, sniffed to reject binary sources before the transport
// layer streams any of it to a client.
type FilePreview struct {
	Filename string
	Lines    []string
}

// maxPreviewLines bounds how much of a source file read_file streams
// back; full materialization happens through a query instead.
const maxPreviewLines = 100

// previewSniffBytes is how many leading bytes filetype.Match inspects,
// grounded on the teacher's BlobFileMatcher sniff window.
const previewSniffBytes = 261

// PreviewFile reads up to maxPreviewLines lines of filename under root,
// refusing anything filetype.Match sniffs as a known binary format.
func PreviewFile(root, filename string) (FilePreview, error) {
	full, err := resolveSource(root, filename)
	if err != nil {
		return FilePreview{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		return FilePreview{}, err
	}
	defer f.Close()

	head := make([]byte, previewSniffBytes)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return FilePreview{}, err
	}
	head = head[:n]
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return FilePreview{}, fmt.Errorf("query: %s is a %s file, not a text source", filename, kind.Extension)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FilePreview{}, err
	}
	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() && len(lines) < maxPreviewLines {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return FilePreview{}, err
	}
	return FilePreview{Filename: filename, Lines: lines}, nil
}

// resolveSource joins filename onto root and rejects anything that
// would resolve outside of it (a "../../etc/passwd"-style filename),
// since read_file is client-supplied and root is meant to scope every
// source a client can name.
func resolveSource(root, filename string) (string, error) {
	full := filepath.Join(root, filename)
	rootClean := filepath.Clean(root)
	if full != rootClean && !strings.HasPrefix(full, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("query: %s escapes the source root", filename)
	}
	return full, nil
}

// ListSources lists the CSV files directly under root, for the
// server's sources{} broadcast on connect.
func ListSources(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".csv" {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
