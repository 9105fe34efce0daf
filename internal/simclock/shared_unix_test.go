//go:build unix

package simclock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clock")

	owner, err := CreateShared(path)
	require.NoError(t, err)

	reader, err := OpenShared(path)
	require.NoError(t, err)

	owner.Advance(2)
	owner.Advance(2)
	assert.Equal(t, Time{Nanos: 250_000_000}, reader.Read())

	require.NoError(t, reader.Close())
	require.NoError(t, owner.Close())
	require.NoError(t, owner.Close(), "second close is a no-op")
	assert.NoFileExists(t, path)
}
