package manifest

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWritesHeaderOnce(t *testing.T) {
	fsys := billy.NewInMemoryFS()

	m, err := Open("transfer.log", fsys)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	m, err = Open("transfer.log", fsys)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	data, err := fsys.ReadFile("transfer.log")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "Source,Destination"))
}

func TestResultRowContents(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	m, err := Open("transfer.log", fsys)
	require.NoError(t, err)

	m.Initialize("s3://bucket/a", "local/a", 42)
	m.SetChecksum("s3://bucket/a", "d41d8cd98f00b204e9800998ecf8427e")
	m.SetSessionID("s3://bucket/a", "upload-1")
	require.NoError(t, m.SetResult("s3://bucket/a", 42, ResultOK, ""))
	require.NoError(t, m.Close())

	data, err := fsys.ReadFile("transfer.log")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, "s3://bucket/a", row[0])
	assert.Equal(t, "local/a", row[1])
	assert.NotEmpty(t, row[2])
	assert.NotEmpty(t, row[3])
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", row[4])
	assert.Equal(t, "upload-1", row[5])
	assert.Equal(t, "42", row[6])
	assert.Equal(t, "42", row[7])
	assert.Equal(t, ResultOK, row[8])
}

func TestWasHandledAcrossRuns(t *testing.T) {
	fsys := billy.NewInMemoryFS()

	m, err := Open("transfer.log", fsys)
	require.NoError(t, err)
	m.Initialize("s3://bucket/done", "x/done", 1)
	require.NoError(t, m.SetResult("s3://bucket/done", 1, ResultOK, ""))
	m.Initialize("s3://bucket/skipped", "x/skipped", 1)
	require.NoError(t, m.SetResult("s3://bucket/skipped", 0, ResultSkip, "exists"))
	m.Initialize("s3://bucket/broken", "x/broken", 1)
	require.NoError(t, m.SetResult("s3://bucket/broken", 0, ResultError, "boom"))
	require.NoError(t, m.Close())

	m, err = Open("transfer.log", fsys)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.WasHandled("s3://bucket/done"))
	assert.True(t, m.WasHandled("s3://bucket/skipped"))
	assert.False(t, m.WasHandled("s3://bucket/broken"), "errored items are retried")
	assert.False(t, m.WasHandled("s3://bucket/never-seen"))
}

// The last recorded row for a source wins, so an item that failed in one
// run and succeeded in a later one counts as handled.
func TestLastRowWins(t *testing.T) {
	fsys := billy.NewInMemoryFS()

	m, err := Open("transfer.log", fsys)
	require.NoError(t, err)
	require.NoError(t, m.SetResult("s3://bucket/a", 0, ResultError, "first try"))
	require.NoError(t, m.Close())

	m, err = Open("transfer.log", fsys)
	require.NoError(t, err)
	require.NoError(t, m.SetResult("s3://bucket/a", 10, ResultOK, ""))
	require.NoError(t, m.Close())

	m, err = Open("transfer.log", fsys)
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.WasHandled("s3://bucket/a"))
}

func TestHandledWithinSameRun(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	m, err := Open("transfer.log", fsys)
	require.NoError(t, err)
	defer m.Close()

	require.False(t, m.WasHandled("s3://bucket/a"))
	m.Initialize("s3://bucket/a", "x/a", 5)
	require.NoError(t, m.SetResult("s3://bucket/a", 5, ResultOK, ""))
	assert.True(t, m.WasHandled("s3://bucket/a"))
}
