package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSetPutGet(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b"})

	_, ok := rs.Get("blk-a")
	assert.False(t, ok)

	rs.Put(MatchResult{ID: "blk-a", Content: "hello", Method: MethodExact, Score: 100})
	r, ok := rs.Get("blk-a")
	require.True(t, ok)
	assert.Equal(t, "hello", r.Content)
	assert.Equal(t, KindOK, r.Kind)
}

func TestResultSetEligible(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b", "blk-c"})
	assert.Equal(t, []string{"blk-a", "blk-b", "blk-c"}, rs.Eligible())

	rs.Put(MatchResult{ID: "blk-a", Content: "done", Method: MethodExact, Score: 100})
	rs.MarkVendorError([]string{"blk-b"}, "deadline exceeded")
	assert.Equal(t, []string{"blk-b", "blk-c"}, rs.Eligible())

	rs.Put(MatchResult{ID: "blk-b", Content: "recovered", Method: MethodRetry, Score: 100})
	rs.Put(MatchResult{ID: "blk-c", Content: "recovered", Method: MethodRetry, Score: 100})
	assert.Empty(t, rs.Eligible())
}

func TestResultSetMarkVendorErrorKeepsResolved(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b"})
	rs.Put(MatchResult{ID: "blk-a", Content: "done", Method: MethodExact, Score: 100})

	rs.MarkVendorError([]string{"blk-a", "blk-b"}, "boom")

	a, _ := rs.Get("blk-a")
	assert.Equal(t, KindOK, a.Kind)
	assert.Equal(t, "done", a.Content)

	b, _ := rs.Get("blk-b")
	assert.Equal(t, KindVendorError, b.Kind)
	assert.Equal(t, "[OCR_ERROR] boom", b.Content)
	assert.Equal(t, "boom", b.Err)
}

func TestResultSetCounts(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b", "blk-c", "blk-d"})
	rs.Put(MatchResult{ID: "blk-a", Content: "x", Method: MethodExact, Score: 100})
	rs.Put(MatchResult{ID: "blk-b", Content: "y", Method: MethodFuzzy, Score: 80})
	rs.MarkVendorError([]string{"blk-c"}, "boom")

	ok, missing, failed := rs.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, missing)
	assert.Equal(t, 1, failed)
}

func TestResultSetRecordsOrderAndMissing(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b", "blk-c"})
	rs.Put(MatchResult{ID: "blk-b", Content: "middle", Method: MethodRepaired, Score: 100})

	records := rs.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "blk-a", records[0].ID)
	assert.Equal(t, "missing", records[0].Status)
	assert.Equal(t, "blk-b", records[1].ID)
	assert.Equal(t, "ok", records[1].Status)
	assert.Equal(t, MethodRepaired, records[1].Method)
	assert.Equal(t, "blk-c", records[2].ID)
	assert.Equal(t, "missing", records[2].Status)
}

func TestResultSetSaveLoadRoundTrip(t *testing.T) {
	rs := NewResultSet([]string{"blk-a", "blk-b", "blk-c"})
	rs.Put(MatchResult{ID: "blk-a", Content: "alpha", Method: MethodExact, Score: 100})
	rs.MarkVendorError([]string{"blk-b"}, "rate limited")

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, rs.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"blk-a", "blk-b", "blk-c"}, loaded.IDs())

	a, ok := loaded.Get("blk-a")
	require.True(t, ok)
	assert.Equal(t, KindOK, a.Kind)
	assert.Equal(t, "alpha", a.Content)
	assert.Equal(t, MethodExact, a.Method)
	assert.Equal(t, 100, a.Score)

	b, ok := loaded.Get("blk-b")
	require.True(t, ok)
	assert.Equal(t, KindVendorError, b.Kind)
	assert.Equal(t, "rate limited", b.Err)

	assert.Equal(t, []string{"blk-b", "blk-c"}, loaded.Eligible())
}

func TestLoadLegacySentinelFile(t *testing.T) {
	legacy := `[
  {"id": "blk-a", "content": "hello"},
  {"id": "blk-b", "content": "[OCR_ERROR] upstream timeout"},
  {"id": "blk-c", "content": ""}
]`
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	rs, err := Load(path)
	require.NoError(t, err)

	a, _ := rs.Get("blk-a")
	assert.Equal(t, KindOK, a.Kind)
	b, _ := rs.Get("blk-b")
	assert.Equal(t, KindVendorError, b.Kind)
	c, _ := rs.Get("blk-c")
	assert.Equal(t, KindMissing, c.Kind)

	assert.Equal(t, []string{"blk-b", "blk-c"}, rs.Eligible())
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestSentinelContent(t *testing.T) {
	assert.Equal(t, "[OCR_ERROR]", SentinelContent(""))
	assert.Equal(t, "[OCR_ERROR] boom", SentinelContent("boom"))
}
