package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOverwriteAndURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://files.example.com/")
	require.NoError(t, err)
	ctx := context.Background()

	n, err := s.Put(ctx, "abc-report.docx", "application/octet-stream", strings.NewReader("v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.Put(ctx, "abc-report.docx", "application/octet-stream", strings.NewReader("version two"))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "abc-report.docx"))
	require.NoError(t, err)
	assert.Equal(t, "version two", string(b))

	u, err := s.URL(ctx, "abc-report.docx")
	require.NoError(t, err)
	assert.Equal(t, "http://files.example.com/uploads/abc-report.docx", u)
}

func TestLocalStore_NestedKey(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://x")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "resumes/u1/r.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "resumes", "u1", "r.pdf"))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "a/../../b", "/abs", "a//b"} {
		_, err := s.Put(context.Background(), key, "", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStore_CanceledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "a.txt", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(s.Root(), "a.txt"))
}
