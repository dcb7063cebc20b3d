package transcribe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeBinary creates an executable placeholder so LoadModel's stat and
// lookup paths can be exercised without whisper installed.
func writeFakeBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func writeFakeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggml-base.en.bin")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
	return path
}

func TestLoadModelResolvesExplicitPaths(t *testing.T) {
	m, err := LoadModel(Config{
		BinaryPath: writeFakeBinary(t),
		ModelPath:  writeFakeModel(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.Equal(t, "en", m.language)
	require.DirExists(t, m.tempDir)
}

func TestLoadModelMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := LoadModel(Config{ModelPath: writeFakeModel(t)})
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoadModelMissingModelFile(t *testing.T) {
	_, err := LoadModel(Config{
		BinaryPath: writeFakeBinary(t),
		ModelPath:  filepath.Join(t.TempDir(), "absent.bin"),
	})
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoadModelUnconfiguredModelPath(t *testing.T) {
	_, err := LoadModel(Config{BinaryPath: writeFakeBinary(t)})
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestCloseRemovesTempDir(t *testing.T) {
	m, err := LoadModel(Config{
		BinaryPath: writeFakeBinary(t),
		ModelPath:  writeFakeModel(t),
		Language:   "de",
	})
	require.NoError(t, err)
	require.Equal(t, "de", m.language)

	dir := m.tempDir
	require.NoError(t, m.Close())
	require.NoDirExists(t, dir)
}
