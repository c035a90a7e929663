package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBaseDir is returned for paths that escape the allowed directory
var ErrOutsideBaseDir = errors.New("path is outside the allowed directory")

// ErrTooLarge is returned when a file exceeds the upload size limit
var ErrTooLarge = errors.New("file exceeds the maximum upload size")

// ResolvePath resolves inputPath (symlinks included) and checks that it stays
// inside baseDir. Relative inputs are taken relative to baseDir.
func ResolvePath(inputPath, baseDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("%w: no base directory configured", ErrOutsideBaseDir)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}
	resolvedBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return "", fmt.Errorf("cannot resolve base directory: %w", err)
	}

	candidate := inputPath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absBase, candidate)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(candidate))
	if err != nil {
		return "", fmt.Errorf("cannot resolve input path: %w", err)
	}

	rel, err := filepath.Rel(resolvedBase, resolved)
	if err != nil {
		return "", fmt.Errorf("cannot compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBaseDir, inputPath)
	}
	return resolved, nil
}

// ReadAllowedFile resolves inputPath inside baseDir and reads it, refusing
// directories, unsupported extensions and files over maxBytes (0 = no limit)
func ReadAllowedFile(inputPath, baseDir string, maxBytes int64) (string, []byte, error) {
	resolved, err := ResolvePath(inputPath, baseDir)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("file does not exist: %w", err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("path is a directory, not a file: %s", inputPath)
	}
	if !IsSpreadsheet(resolved) {
		return "", nil, fmt.Errorf("unsupported file type %q", filepath.Ext(resolved))
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", nil, ErrTooLarge
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return "", nil, ErrTooLarge
	}
	return resolved, content, nil
}
