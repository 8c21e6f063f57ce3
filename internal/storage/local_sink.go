package storage

import (
	"context"
	"os"
	"path/filepath"
)

// LocalSink writes optimized images into a directory tree, mirroring
// the input layout. Writes go to a temp file in the destination
// directory followed by a rename, so a killed or cancelled job cannot
// leave a half-written image behind.
type LocalSink struct {
	root string
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{root: dir}
}

func (s *LocalSink) path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Exists reports whether a file already occupies rel.
func (s *LocalSink) Exists(_ context.Context, rel string) (bool, error) {
	_, err := os.Stat(s.path(rel))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Store atomically writes data at rel.
func (s *LocalSink) Store(_ context.Context, rel string, data []byte) error {
	dst := s.path(rel)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Temp file in the destination directory so the rename never
	// crosses a filesystem boundary.
	tmp, err := os.CreateTemp(dir, ".talvaar-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Location returns the absolute destination path for rel.
func (s *LocalSink) Location(rel string) string {
	abs, err := filepath.Abs(s.path(rel))
	if err != nil {
		return s.path(rel)
	}
	return abs
}
