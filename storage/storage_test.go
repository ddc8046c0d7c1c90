package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndResolve(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	saved, err := s.Save("专利证书.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "专利证书.pdf", saved.OriginalName)
	assert.True(t, strings.HasSuffix(saved.Ref, "_专利证书.pdf"))
	assert.Equal(t, filepath.Join(s.Root(), saved.Ref), saved.StoredPath)

	data, err := os.ReadFile(saved.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	p, err := s.Resolve(saved.Ref)
	require.NoError(t, err)
	assert.Equal(t, saved.StoredPath, p)
}

func TestSaveIsStable(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	a, err := s.Save("a.pdf", strings.NewReader("same"))
	require.NoError(t, err)
	b, err := s.Save("a.pdf", strings.NewReader("same"))
	require.NoError(t, err)
	c, err := s.Save("a.pdf", strings.NewReader("different"))
	require.NoError(t, err)

	assert.Equal(t, a.Ref, b.Ref)
	assert.NotEqual(t, a.Ref, c.Ref)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolveRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	s, err := New(filepath.Join(root, "store"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o600))

	for _, ref := range []string{"", "..", "../secret.txt", "/etc/passwd", `..\secret.txt`, "a/../../secret.txt"} {
		_, err := s.Resolve(ref)
		assert.True(t, errors.Is(err, ErrOutsideRoot), ref)
	}

	_, err = s.Resolve("missing.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "b.pdf", SafeName("../a/b.pdf"))
	assert.Equal(t, "b.pdf", SafeName(`C:\a\b.pdf`))
	assert.Equal(t, "a_b.pdf", SafeName("a:b.pdf"))
	assert.Equal(t, "attachment", SafeName(".."))
	assert.Equal(t, "attachment", SafeName(""))
}
