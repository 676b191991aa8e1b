package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softarchitect/apps/ingest/internal/document"
)

func TestValidator_ValidateRoot(t *testing.T) {
	v := NewValidator()

	t.Run("Plain Directory", func(t *testing.T) {
		assert.NoError(t, v.ValidateRoot(t.TempDir()))
	})

	t.Run("Parent Segment", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

		err := v.ValidateRoot(dir + "/sub/..")
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.Equal(t, document.ReasonPathTraversal, document.ReasonOf(err))
	})

	t.Run("Symlinked Root", func(t *testing.T) {
		target := t.TempDir()
		link := filepath.Join(t.TempDir(), "kb")
		require.NoError(t, os.Symlink(target, link))

		err := v.ValidateRoot(link)
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.Equal(t, document.ReasonSymlink, document.ReasonOf(err))
	})

	t.Run("Missing", func(t *testing.T) {
		err := v.ValidateRoot(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestValidator_ValidateFile(t *testing.T) {
	v := NewValidator()
	root := t.TempDir()
	inside := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(inside, []byte("# Doc"), 0o644))

	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "secret.md")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	t.Run("Inside Root", func(t *testing.T) {
		assert.NoError(t, v.ValidateFile(inside, root))
	})

	t.Run("Dot Dot Escape", func(t *testing.T) {
		escaped := filepath.Join(root, "..", filepath.Base(outsideDir), "secret.md")
		err := v.ValidateFile(escaped, root)
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.Equal(t, document.ReasonPathTraversal, document.ReasonOf(err))
	})

	t.Run("Symlink Escaping Root", func(t *testing.T) {
		link := filepath.Join(root, "link.md")
		require.NoError(t, os.Symlink(outside, link))
		t.Cleanup(func() { os.Remove(link) })

		err := v.ValidateFile(link, root)
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.Equal(t, document.ReasonPathTraversal, document.ReasonOf(err))
	})

	t.Run("Symlink Inside Root", func(t *testing.T) {
		link := filepath.Join(root, "alias.md")
		require.NoError(t, os.Symlink(inside, link))
		t.Cleanup(func() { os.Remove(link) })

		err := v.ValidateFile(link, root)
		assert.ErrorIs(t, err, document.ErrSecurity)
		assert.Equal(t, document.ReasonSymlink, document.ReasonOf(err))
	})

	t.Run("Missing File", func(t *testing.T) {
		err := v.ValidateFile(filepath.Join(root, "missing.md"), root)
		assert.ErrorIs(t, err, document.ErrSecurity)
	})
}

func TestValidator_ValidateSize(t *testing.T) {
	v := NewValidator()
	dir := t.TempDir()
	path := filepath.Join(dir, "big.md")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0o644))

	assert.NoError(t, v.ValidateSize(path, 100))

	err := v.ValidateSize(path, 99)
	assert.ErrorIs(t, err, document.ErrSecurity)
	assert.Equal(t, document.ReasonTooLarge, document.ReasonOf(err))

	err = v.ValidateSize(filepath.Join(dir, "none.md"), 100)
	assert.ErrorIs(t, err, document.ErrValidation)
}

func TestValidator_ValidateDepth(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.ValidateDepth(0, DefaultMaxDepth))
	assert.False(t, v.ValidateDepth(10, DefaultMaxDepth))
	assert.True(t, v.ValidateDepth(11, DefaultMaxDepth))
}

func TestIsWithin(t *testing.T) {
	root := filepath.FromSlash("/kb")
	assert.True(t, IsWithin(root, root))
	assert.True(t, IsWithin(root, filepath.FromSlash("/kb/a/b.md")))
	assert.False(t, IsWithin(root, filepath.FromSlash("/kb2/a.md")))
	assert.False(t, IsWithin(root, filepath.FromSlash("/etc/passwd")))
	assert.True(t, IsWithin(root, filepath.FromSlash("/kb/..hidden.md")))
}
