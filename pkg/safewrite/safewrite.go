// Package safewrite commits file content all-or-nothing.
//
// Content is buffered in memory and handed to atomic.WriteFile, which writes a
// temporary file next to the target and renames it over the target. Readers see either
// the previous file or the new one, never a partial write.
package safewrite

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// File buffers the next content of a target path.
type File struct {
	path string
	buf  bytes.Buffer
	perm os.FileMode
}

// New creates an empty buffer for path.
func New(path string) *File {
	return &File{
		path: path,
		perm: 0644,
	}
}

// Path returns the target path.
func (f *File) Path() string {
	return f.path
}

// Write appends p to the pending content.
func (f *File) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

// WriteString appends s to the pending content.
func (f *File) WriteString(s string) (int, error) {
	return f.buf.WriteString(s)
}

// WriteByte appends c to the pending content.
func (f *File) WriteByte(c byte) error {
	return f.buf.WriteByte(c)
}

// Reset discards the pending content.
func (f *File) Reset() {
	f.buf.Reset()
}

// Bytes returns the pending content.
func (f *File) Bytes() []byte {
	return f.buf.Bytes()
}

// Hash returns the SHA-256 digest of the pending content.
func (f *File) Hash() []byte {
	sum := sha256.Sum256(f.buf.Bytes())
	return sum[:]
}

// Commit replaces the target with the pending content. A new target gets mode 0644,
// an existing one keeps its mode.
func (f *File) Commit() error {
	_, statErr := os.Stat(f.path)

	if err := atomic.WriteFile(f.path, bytes.NewReader(f.buf.Bytes())); err != nil {
		return fmt.Errorf("failed to commit %s: %w", f.path, err)
	}

	if os.IsNotExist(statErr) {
		if err := os.Chmod(f.path, f.perm); err != nil {
			return fmt.Errorf("failed to set file mode: %w", err)
		}
	}
	return nil
}

// CommitIfDifferent commits only when the pending content hashes differently from
// *lastHash, and stores the new hash in *lastHash on success. It reports whether the
// target was written.
func (f *File) CommitIfDifferent(lastHash *[]byte) (bool, error) {
	hash := f.Hash()
	if lastHash != nil && bytes.Equal(hash, *lastHash) {
		return false, nil
	}

	if err := f.Commit(); err != nil {
		return false, err
	}

	if lastHash != nil {
		*lastHash = hash
	}
	return true, nil
}
