package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriter_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateWriter(path, ',', []string{"id", "status"})
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"1", "success"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,status\n1,success\n", string(data))
}

func TestAppendWriter_ContinuesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateWriter(path, ',', []string{"id"})
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"1"}))
	require.NoError(t, w.Close())

	a, err := AppendWriter(path, ',')
	require.NoError(t, err)
	require.NoError(t, a.Write([]string{"2"}))
	require.NoError(t, a.Close())

	n, err := CountRows(path, ',')
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n2\n", string(data))
}

func TestTruncateRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateWriter(path, ',', []string{"id"})
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, w.Write([]string{id}))
	}
	require.NoError(t, w.Close())

	require.NoError(t, TruncateRows(path, ',', 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"id", "1", "2"}, lines)
}

func TestTruncateRows_KeepMoreThanPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateWriter(path, ',', []string{"id"})
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"1"}))
	require.NoError(t, w.Close())

	require.NoError(t, TruncateRows(path, ',', 10))

	n, err := CountRows(path, ',')
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
