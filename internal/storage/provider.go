// Package storage defines the file-system abstraction shared by the inbox
// importer and the local attachment backend.
package storage

import "time"

// FileInfo describes a file found under a storage root.
type FileInfo struct {
	Path    string // relative to the root, slash separated
	Size    int64
	ModTime time.Time
}

// Provider is the interface for rooted file operations. Every path is
// relative to the provider root.
type Provider interface {
	// Root returns the absolute directory the provider is rooted at.
	Root() string
	// List returns the regular files directly inside dir whose extension is
	// in exts. An empty exts matches every file.
	List(dir string, exts ...string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file is present at path.
	Exists(path string) bool
}
