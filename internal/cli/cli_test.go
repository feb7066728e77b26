package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dir", dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddGetSearchDelete(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	out, err := run(t, dir, "add", "--id", "north", "--meta", `{"label":"N"}`, "0,1")
	require.NoError(t, err)
	assert.Equal(t, "north\n", out)

	out, err = run(t, dir, "add", "1,0")
	require.NoError(t, err)
	generated := strings.TrimSpace(out)
	assert.NotEmpty(t, generated)

	out, err = run(t, dir, "get", "north")
	require.NoError(t, err)
	var rec struct {
		ID       string         `json:"id"`
		Vector   []float64      `json:"vector"`
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, []float64{0, 1}, rec.Vector)
	assert.Equal(t, "N", rec.Metadata["label"])

	out, err = run(t, dir, "search", "--k", "1", "--metric", "euclidean", "0.9,0.1")
	require.NoError(t, err)
	var nearby []struct {
		ID       string  `json:"id"`
		Distance float64 `json:"distance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &nearby))
	require.Len(t, nearby, 1)
	assert.Equal(t, generated, nearby[0].ID)

	out, err = run(t, dir, "search", "0,2")
	require.NoError(t, err)
	var similar []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &similar))
	require.Len(t, similar, 2)
	assert.Equal(t, "north", similar[0].ID)

	out, err = run(t, dir, "delete", "north", "missing")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1 of 2\n", out)

	_, err = run(t, dir, "get", "north")
	require.Error(t, err)
}

func TestStatsFlushCompact(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	for _, v := range []string{"1,2", "3,4", "5,6"} {
		_, err := run(t, dir, "add", v)
		require.NoError(t, err)
	}
	_, err := run(t, dir, "flush")
	require.NoError(t, err)
	_, err = run(t, dir, "compact")
	require.NoError(t, err)

	out, err := run(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:        3")
	assert.Contains(t, out, "Dimension:      2")
	assert.Contains(t, out, "Segments:       1 (3 records)")
}

func TestInvalidInput(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	_, err := run(t, dir, "add", "1,x")
	require.Error(t, err)
	_, err = run(t, dir, "add", "--meta", "not-json", "1,2")
	require.Error(t, err)
	_, err = run(t, dir, "search", "--metric", "hamming", "1,2")
	require.Error(t, err)
	_, err = run(t, dir, "search", "--k", "0", "1,2")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lsmvec 1.2.3")
	assert.Contains(t, out, "commit: abc")
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 1, 2.5 ,-3 ")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, v)

	_, err = parseVector(",")
	require.Error(t, err)
}
