package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var nonWordRe = regexp.MustCompile(`\W+`)

// SanitizeName drops every non-word character: "Team sync #2" -> "Teamsync2"
func SanitizeName(name string) string {
	return nonWordRe.ReplaceAllString(name, "")
}

// LocalStorage owns the conversations directory on disk
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// Root is the conversations directory
func (ls *LocalStorage) Root() string {
	return ls.root
}

// FolderName is "{id}_{sanitized name}"
func FolderName(id, name string) string {
	return fmt.Sprintf("%s_%s", id, SanitizeName(name))
}

// ConversationDir returns the folder of one conversation
func (ls *LocalStorage) ConversationDir(id, name string) string {
	return filepath.Join(ls.root, FolderName(id, name))
}

// EnsureDir creates dir and its parents
func (ls *LocalStorage) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// RemoveDir deletes dir and everything below it
func (ls *LocalStorage) RemoveDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", dir, err)
	}
	return nil
}

// StageDir creates an empty sibling of dir. Fill it, then ReplaceDir it
// over dir, so dir only ever holds a complete set of files.
func (ls *LocalStorage) StageDir(dir string) (string, error) {
	parent := filepath.Dir(dir)
	if err := ls.EnsureDir(parent); err != nil {
		return "", err
	}
	staged, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return staged, nil
}

// ReplaceDir moves staged to dir, dropping whatever dir held before
func (ls *LocalStorage) ReplaceDir(staged, dir string) error {
	if err := ls.RemoveDir(dir); err != nil {
		return err
	}
	if err := os.Rename(staged, dir); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dir, err)
	}
	return nil
}

// WriteFrom streams r into path through a temp file in the same directory
// and renames it into place, so readers never see a partial file.
func (ls *LocalStorage) WriteFrom(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := ls.EnsureDir(dir); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return n, nil
}

// WriteFile atomically replaces path with data
func (ls *LocalStorage) WriteFile(path string, data []byte) error {
	_, err := ls.WriteFrom(path, bytes.NewReader(data))
	return err
}

// WriteJSON atomically replaces path with indented JSON
func (ls *LocalStorage) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return ls.WriteFile(path, data)
}

// Exists reports whether path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
