package clientstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.json")

	s, err := Open(path)
	require.NoError(t, err)
	_, ok := s.Get(KeyToken)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyToken, "tok"))
	require.NoError(t, s.Set(KeyName, "Ada"))

	reopened, err := Open(path)
	require.NoError(t, err)
	v, ok := reopened.Get(KeyName)
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	require.NoError(t, reopened.Delete(KeyToken, KeyName))
	again, err := Open(path)
	require.NoError(t, err)
	_, ok = again.Get(KeyToken)
	assert.False(t, ok)
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}
