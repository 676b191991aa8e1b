// Package loader turns a markdown knowledge base on disk into chunks ready
// for indexing.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"softarchitect/apps/ingest/internal/document"
	"softarchitect/apps/ingest/internal/security"
	"softarchitect/apps/ingest/internal/text"
)

const markdownExt = ".md"

// Config controls a Loader. A zero MaxChunkSize, MaxFileSize or MaxDepth falls
// back to the package default. MinChunkSize falls back only when negative;
// zero keeps every piece. Use DefaultConfig to also enable security validation.
type Config struct {
	Root             string
	MaxChunkSize     int
	MinChunkSize     int
	ValidateSecurity bool
	MaxFileSize      int64
	MaxDepth         int
}

func DefaultConfig(root string) Config {
	return Config{
		Root:             root,
		MaxChunkSize:     document.DefaultMaxChunkSize,
		MinChunkSize:     document.DefaultMinChunkSize,
		ValidateSecurity: true,
		MaxFileSize:      security.DefaultMaxFileSize,
		MaxDepth:         security.DefaultMaxDepth,
	}
}

// FileResult is the outcome of loading one discovered file.
type FileResult struct {
	Path   string
	Chunks []document.Chunk
	Err    error
}

type Loader struct {
	root      string // absolute with symlinks resolved
	cfg       Config
	validator *security.Validator
	extractor *document.Extractor
	splitter  *document.Splitter
}

func New(cfg Config) (*Loader, error) {
	if cfg.Root == "" {
		return nil, document.ConfigurationError("", document.ReasonRootUnspecified, nil)
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = document.DefaultMaxChunkSize
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = document.DefaultMinChunkSize
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = security.DefaultMaxFileSize
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = security.DefaultMaxDepth
	}

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, document.ConfigurationError(cfg.Root, document.ReasonRootMissing, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, document.ConfigurationError(abs, document.ReasonRootMissing, err)
	}
	if !info.IsDir() {
		return nil, document.ConfigurationError(abs, document.ReasonRootNotDir, nil)
	}

	v := security.NewValidator()
	if cfg.ValidateSecurity {
		if err := v.ValidateRoot(cfg.Root); err != nil {
			return nil, err
		}
	}

	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, document.ConfigurationError(abs, document.ReasonRootMissing, err)
	}

	slog.Info("document loader initialized",
		"root", root,
		"max_chunk_size", cfg.MaxChunkSize,
		"min_chunk_size", cfg.MinChunkSize,
		"validate_security", cfg.ValidateSecurity,
	)

	return &Loader{
		root:      root,
		cfg:       cfg,
		validator: v,
		extractor: document.NewExtractor(root),
		splitter:  document.NewSplitter(cfg.MaxChunkSize, cfg.MinChunkSize),
	}, nil
}

func (l *Loader) Root() string {
	return l.root
}

// LoadOne reads, cleans, and splits a single markdown file. A file without
// any alphanumeric content yields no chunks and no error.
func (l *Loader) LoadOne(path string) ([]document.Chunk, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, document.ValidationError(path, document.ReasonNotFound, err)
	}
	if filepath.Ext(abs) != markdownExt {
		return nil, document.ValidationError(path, document.ReasonNotMarkdown, nil)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, document.ValidationError(path, document.ReasonNotFound, err)
		}
		return nil, document.ValidationError(path, document.ReasonUnreadable, err)
	}

	if l.cfg.ValidateSecurity {
		if err := l.validator.ValidateFile(abs, l.root); err != nil {
			return nil, err
		}
		if err := l.validator.ValidateSize(abs, l.cfg.MaxFileSize); err != nil {
			return nil, err
		}
	} else if info.Size() > l.cfg.MaxFileSize {
		return nil, document.ValidationError(path, document.ReasonTooLarge, nil)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, document.ValidationError(path, document.ReasonUnreadable, err)
	}
	raw, err := os.ReadFile(resolved) // #nosec G304 -- path checked against the knowledge base root
	if err != nil {
		return nil, document.ValidationError(path, document.ReasonUnreadable, err)
	}
	if !utf8.Valid(raw) {
		return nil, document.ValidationError(path, document.ReasonEncoding, nil)
	}

	content := string(raw)
	if !text.IsValidMarkdown(content) {
		slog.Warn("document has no readable content, skipping", "path", path)
		return nil, nil
	}

	meta, err := l.extractor.Extract(resolved, info, content)
	if err != nil {
		return nil, err
	}
	chunks := l.splitter.Split(text.Clean(content), meta)

	slog.Debug("document loaded", "path", meta.FilePath, "chunks", len(chunks))
	return chunks, nil
}

// LoadFiles yields one result per discovered file. Each iteration walks the
// filesystem afresh; ctx is checked between files.
func (l *Loader) LoadFiles(ctx context.Context) iter.Seq[FileResult] {
	return func(yield func(FileResult) bool) {
		for path := range l.Discover() {
			if err := ctx.Err(); err != nil {
				slog.WarnContext(ctx, "document loading cancelled", "error", err)
				return
			}
			chunks, err := l.LoadOne(path)
			if !yield(FileResult{Path: path, Chunks: chunks, Err: err}) {
				return
			}
		}
	}
}

// LoadAll yields the chunks of every loadable file. Files that fail are
// logged and skipped.
func (l *Loader) LoadAll(ctx context.Context) iter.Seq[document.Chunk] {
	return func(yield func(document.Chunk) bool) {
		for res := range l.LoadFiles(ctx) {
			if res.Err != nil {
				slog.ErrorContext(ctx, "failed to load document", "path", res.Path, "error", res.Err)
				continue
			}
			for _, c := range res.Chunks {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// RelPath returns path relative to the root in forward-slash form, the value
// chunks carry as their filepath.
func (l *Loader) RelPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", document.ValidationError(path, document.ReasonOutsideRoot, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if !security.IsWithin(l.root, abs) || abs == l.root {
		return "", document.ValidationError(path, document.ReasonOutsideRoot, nil)
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", document.ValidationError(path, document.ReasonOutsideRoot, err)
	}
	return filepath.ToSlash(rel), nil
}

// IsCandidate reports whether a file name is a visible, non-system markdown
// file.
func IsCandidate(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if _, ok := systemFiles[name]; ok {
		return false
	}
	return strings.HasSuffix(name, markdownExt)
}

// IsHiddenDir reports whether a directory name is hidden.
func IsHiddenDir(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
