// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrover/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		tempDir := t.TempDir()
		cfg := local.Config{BaseDir: tempDir}
		store, err := local.New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		cfg := local.Config{}
		_, err := local.New(cfg)
		assert.Error(t, err)
	})

	t.Run("CreatesBaseDir", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "reports")
		_, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)
		info, err := os.Stat(tempDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp("", "testfile")
		require.NoError(t, err)
		t.Cleanup(func() {
			removeErr := os.Remove(tempFile.Name())
			if removeErr != nil && !os.IsNotExist(removeErr) {
				t.Fatalf("failed to remove temp file: %v", removeErr)
			}
		})

		cfg := local.Config{BaseDir: tempFile.Name()}
		_, err = local.New(cfg)
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Run("WritesFileAndReturnsURI", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)

		uri, err := store.PutObject(context.Background(), "runs/abc/report.html", "text/html", bytes.NewReader([]byte("<html></html>")))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "runs", "abc", "report.html"), uri)

		content, err := os.ReadFile(filepath.Join(tempDir, "runs", "abc", "report.html"))
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(content))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)

		_, err = store.PutObject(context.Background(), "   ", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)

		_, err = store.PutObject(context.Background(), "../escape.html", "", bytes.NewReader([]byte("x")))
		assert.ErrorContains(t, err, "path traversal")
	})

	t.Run("OverwriteIsAtomic", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)

		_, err = store.PutObject(context.Background(), "report.json", "", bytes.NewReader([]byte("first")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "report.json", "", bytes.NewReader([]byte("second")))
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(tempDir, "report.json"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(content))

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})
}
