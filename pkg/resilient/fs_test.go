package resilient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSDurable_Write(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSDurable(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), "ledger/exports/abc", []byte("payload")))

	data, err := os.ReadFile(filepath.Join(dir, "ledger", "exports", "abc.blob"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// Overwrite with the same key is an idempotent replace.
	require.NoError(t, s.Write(context.Background(), "ledger/exports/abc", []byte("payload")))
}

func TestFSDurable_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFSDurable(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "a/../../b"} {
		assert.Error(t, s.Write(context.Background(), key, []byte("x")), key)
	}
}

func TestNewDurable_Factory(t *testing.T) {
	ctx := context.Background()

	mem, err := NewDurable(ctx, BackendConfig{Type: BackendMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", mem.Name())

	fs, err := NewDurable(ctx, BackendConfig{Type: BackendFS, DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "fs", fs.Name())

	_, err = NewDurable(ctx, BackendConfig{Type: BackendS3})
	assert.Error(t, err) // bucket required

	_, err = NewDurable(ctx, BackendConfig{Type: "tape"})
	assert.Error(t, err)
}
