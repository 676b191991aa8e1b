package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/retrieval"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		KBRoot:               root,
		MaxChunkSize:         2000,
		MinChunkSize:         0,
		ValidateSecurity:     true,
		MaxFileSizeBytes:     1 << 20,
		MaxDepth:             10,
		IngestMode:           config.IngestModeDirect,
		IngestionConcurrency: 1,
		LogLevel:             "error",
	}
}

// execute runs the root command with args against a stubbed configuration.
func execute(t *testing.T, c *config.Config, args ...string) (string, error) {
	t.Helper()
	origLoad := loadConfig
	loadConfig = func() (*config.Config, error) { return c, nil }

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		loadConfig = origLoad
		rootCmd.SetArgs(nil)
		ingestDryRun, ingestRoot, ingestJSON = false, "", false
		searchLimit, searchJSON, searchCategory = retrieval.DefaultTopK, false, ""
		logLevel = ""
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeKB(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backend", "api_design.md"),
		[]byte("# API Design\n\n## Versioning\n\nVersion every public route.\n\n## Errors\n\nReturn typed errors.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "overview.md"),
		[]byte("# Overview\n\nWhat lives where.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))
	return root
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "serve", "worker", "search", "watch"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_ConfigErrorStopsCommand(t *testing.T) {
	origLoad := loadConfig
	loadConfig = func() (*config.Config, error) { return nil, config.ErrMissingRequired }
	defer func() { loadConfig = origLoad }()

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"ingest", "--dry-run"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestIngestCmd_Flags(t *testing.T) {
	for _, name := range []string{"dry-run", "root", "json"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestIngestCmd_DryRun(t *testing.T) {
	root := writeKB(t)

	out, err := execute(t, testConfig(root), "ingest", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "backend/api_design.md")
	assert.Contains(t, out, "overview.md")
	assert.NotContains(t, out, "notes.txt")
	assert.Contains(t, out, "2 seen, 0 failed")
}

func TestIngestCmd_DryRunJSONWithRootOverride(t *testing.T) {
	root := writeKB(t)

	out, err := execute(t, testConfig(filepath.Join(root, "missing")), "ingest", "--dry-run", "--json", "--root", root)
	require.NoError(t, err)

	var report struct {
		FilesSeen      int `json:"files_seen"`
		ChunksProduced int `json:"chunks_produced"`
		ChunksStored   int `json:"chunks_stored"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 2, report.FilesSeen)
	assert.Positive(t, report.ChunksProduced)
	assert.Equal(t, report.ChunksProduced, report.ChunksStored)
}

func TestIngestCmd_DryRunMissingRoot(t *testing.T) {
	_, err := execute(t, testConfig(filepath.Join(t.TempDir(), "missing")), "ingest", "--dry-run")
	assert.Error(t, err)
}

type stubSearcher struct {
	results []retrieval.SearchResult
	err     error
	gotK    int
	gotOpts *retrieval.SearchOptions
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, error) {
	s.gotK = k
	s.gotOpts = opts
	return s.results, s.err
}

func withSearcher(t *testing.T, s searcher) {
	t.Helper()
	orig := newSearcher
	newSearcher = func(context.Context, *config.Config) (searcher, func(), error) {
		return s, func() {}, nil
	}
	t.Cleanup(func() { newSearcher = orig })
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, testConfig(t.TempDir()), "search")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestSearchCmd_Table(t *testing.T) {
	s := &stubSearcher{results: []retrieval.SearchResult{
		{ID: "c-1", Title: "API Design", FilePath: "backend/api_design.md", Content: "Version every\npublic route.", Score: 0.87},
	}}
	withSearcher(t, s)

	out, err := execute(t, testConfig(t.TempDir()), "search", "-n", "3", "--category", "backend", "versioning")
	require.NoError(t, err)

	assert.Equal(t, 3, s.gotK)
	assert.Equal(t, "backend", s.gotOpts.Category)
	assert.Contains(t, out, "[1] API Design (0.87)")
	assert.Contains(t, out, "File: backend/api_design.md")
	assert.Contains(t, out, "Version every public route.")
}

func TestSearchCmd_JSONEmpty(t *testing.T) {
	withSearcher(t, &stubSearcher{})

	out, err := execute(t, testConfig(t.TempDir()), "search", "--json", "nothing")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSearchCmd_Error(t *testing.T) {
	withSearcher(t, &stubSearcher{err: errors.New("weaviate down")})

	_, err := execute(t, testConfig(t.TempDir()), "search", "anything")
	assert.ErrorContains(t, err, "search failed")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\nb", 10))
	assert.Equal(t, "héll...", snippet("héllo world", 4))
}
