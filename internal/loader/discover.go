package loader

import (
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"
)

var systemFiles = map[string]struct{}{
	".DS_Store": {},
	".gitkeep":  {},
	"Thumbs.db": {},
}

// Discover yields candidate markdown files under the root in walk order.
// Hidden directories and directories deeper than the configured limit are
// pruned.
func (l *Loader) Discover() iter.Seq[string] {
	return func(yield func(string) bool) {
		stopped := false
		err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d == nil {
					return err
				}
				slog.Warn("cannot read knowledge base entry", "path", path, "error", err)
				return nil
			}

			if d.IsDir() {
				if path == l.root {
					return nil
				}
				if IsHiddenDir(d.Name()) {
					return fs.SkipDir
				}
				depth := l.Depth(path)
				if l.validator.ValidateDepth(depth, l.cfg.MaxDepth) {
					slog.Warn("max recursion depth reached, skipping directory", "path", path, "depth", depth, "max_depth", l.cfg.MaxDepth)
					return fs.SkipDir
				}
				return nil
			}

			if !IsCandidate(d.Name()) {
				return nil
			}
			if !yield(path) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			slog.Error("knowledge base walk failed", "root", l.root, "error", err)
		}
	}
}

// Depth counts the path segments of dir below the root.
func (l *Loader) Depth(dir string) int {
	rel, err := filepath.Rel(l.root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
