package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Subdirectories under the artifact root. Watermarked and extended outputs
// are kept apart from the originals so a post-processing pass never risks
// clobbering the pre-transform file.
const (
	DirImages      = ""
	DirWatermarked = "watermarked"
	DirVideos      = "videos"
)

// Store persists generated artifacts on local disk and maps them to URLs
// served by the API under /generated. Names never collide by construction
// (batch-scoped stems with task-specific suffixes), so no locking is needed
// even with concurrent writers.
type Store struct {
	Root    string // e.g. "generated"
	BaseURL string // URL prefix the API serves Root under, e.g. "/generated"
}

func New(root, baseURL string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, DirWatermarked), filepath.Join(root, DirVideos)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
		}
	}
	return &Store{Root: root, BaseURL: baseURL}, nil
}

// Save writes data under subdir/filename and returns the absolute-ish local
// path plus the public URL. filename must already be a sanitized stem+ext.
func (s *Store) Save(ctx context.Context, subdir, filename string, data []byte) (path string, url string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("save cancelled: %w", err)
	}

	clean := SanitizeName(filename)
	if clean == "" {
		return "", "", fmt.Errorf("invalid artifact filename %q", filename)
	}

	path = filepath.Join(s.Root, subdir, clean)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	return path, s.URLFor(subdir, clean), nil
}

// URLFor maps a stored file to its public URL.
func (s *Store) URLFor(subdir, filename string) string {
	if subdir == "" {
		return s.BaseURL + "/" + filename
	}
	return s.BaseURL + "/" + subdir + "/" + filename
}

// Read loads a previously stored artifact by its local path. The path must
// resolve inside the store root; anything else is rejected.
func (s *Store) Read(path string) ([]byte, error) {
	if !s.Contains(path) {
		return nil, fmt.Errorf("path %q is outside the artifact root", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return data, nil
}

// Contains reports whether path resolves inside the store root.
func (s *Store) Contains(path string) bool {
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return false
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, pathAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveURLPath maps a served URL path (e.g. "/generated/videos/x.mp4")
// back to the local file path, rejecting traversal.
func (s *Store) ResolveURLPath(urlPath string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(urlPath, "/"), strings.TrimPrefix(s.BaseURL, "/"))
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", fmt.Errorf("empty artifact path")
	}

	path := filepath.Join(s.Root, filepath.FromSlash(trimmed))
	if !s.Contains(path) {
		return "", fmt.Errorf("path %q escapes the artifact root", urlPath)
	}
	return path, nil
}

// ListBatchFiles returns the filenames in subdir whose stem starts with the
// batch ID. Used by download-batch and the video extension pass.
func (s *Store) ListBatchFiles(subdir string, batchID uuid.UUID) ([]string, error) {
	dir := filepath.Join(s.Root, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact dir %s: %w", dir, err)
	}

	prefix := batchID.String()
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete removes a stored artifact. Missing files are not an error: cleanup
// is best effort.
func (s *Store) Delete(path string) error {
	if !s.Contains(path) {
		return fmt.Errorf("path %q is outside the artifact root", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact %s: %w", path, err)
	}
	return nil
}

// SanitizeName strips path separators and traversal sequences from a
// filename so batch/language input can never escape the artifact root.
func SanitizeName(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	name = strings.ReplaceAll(name, "..", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}
