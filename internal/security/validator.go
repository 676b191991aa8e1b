// Package security guards the document loader against paths that escape the
// knowledge base, symlinks, oversized files and runaway directory depth.
package security

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"softarchitect/apps/ingest/internal/document"
)

const (
	DefaultMaxFileSize int64 = 10 << 20
	DefaultMaxDepth          = 10
)

// Validator is stateless and safe for concurrent use.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRoot checks the knowledge base root as given by the caller, before
// any cleaning or symlink resolution.
func (v *Validator) ValidateRoot(path string) error {
	if hasParentSegment(path) {
		return document.SecurityError(path, document.ReasonPathTraversal, nil)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return document.SecurityError(path, document.ReasonSymlink, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	return f.Close()
}

// ValidateFile rejects path when it resolves outside root or is itself a
// symlink.
func (v *Validator) ValidateFile(path, root string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return document.SecurityError(root, document.ReasonUnreadable, err)
	}
	if !IsWithin(resolvedRoot, resolved) {
		return document.SecurityError(path, document.ReasonPathTraversal, nil)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return document.SecurityError(path, document.ReasonSymlink, nil)
	}
	return nil
}

// ValidateSize rejects files larger than maxBytes.
func (v *Validator) ValidateSize(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document.ValidationError(path, document.ReasonNotFound, err)
		}
		return document.SecurityError(path, document.ReasonUnreadable, err)
	}
	if info.Size() > maxBytes {
		return document.SecurityError(path, document.ReasonTooLarge, nil)
	}
	return nil
}

// ValidateDepth reports whether a directory at depth should be pruned.
func (v *Validator) ValidateDepth(depth, maxDepth int) bool {
	return depth > maxDepth
}

// IsWithin reports whether path equals root or lies beneath it. Both are
// expected to be absolute and already resolved.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func hasParentSegment(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
