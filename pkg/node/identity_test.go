package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadIdentityGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadIdentity(dir)
	require.NoError(t, err)
	require.NotNil(t, first)

	info, err := os.Stat(filepath.Join(dir, identityFileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// a second load must return the same key, not a fresh one
	second, err := LoadIdentity(dir)
	require.NoError(t, err)
	require.True(t, first.Equals(second))
}

func TestLoadIdentityRejectsCorruptKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, identityFileName), []byte("garbage"), 0600))

	_, err := LoadIdentity(dir)
	require.Error(t, err)
}
