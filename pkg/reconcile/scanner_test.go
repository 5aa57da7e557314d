package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMarkersBasic(t *testing.T) {
	src := "BLOCK_ID: ABCD-EFGH-JKM\nhello world"
	markers := scanMarkers(src)
	require.Len(t, markers, 1)
	assert.Equal(t, 0, markers[0].Start)
	assert.Equal(t, "ABCD-EFGH-JKM", markers[0].Code)
	assert.Equal(t, "\nhello world", src[markers[0].End:])
}

func TestScanMarkersKeywordVariants(t *testing.T) {
	variants := []string{
		"BLOCK_ID: ABCD-EFGH-JKM",
		"block id: ABCD-EFGH-JKM",
		"Block-Id ABCD-EFGH-JKM",
		"BLOCK  ID :  ABCD-EFGH-JKM",
		"BLOCKID:ABCD-EFGH-JKM",
	}
	for _, src := range variants {
		markers := scanMarkers(src)
		require.Len(t, markers, 1, "variant %q", src)
		assert.Equal(t, "ABCD-EFGH-JKM", markers[0].Code, "variant %q", src)
	}
}

func TestScanMarkersSpacedCodeStopsBeforeContent(t *testing.T) {
	src := "BLOCK_ID: ABCD EFGH JKM Quarterly totals follow"
	markers := scanMarkers(src)
	require.Len(t, markers, 1)
	assert.Equal(t, "ABCD EFGH JKM", markers[0].Code)
	assert.Equal(t, " Quarterly totals follow", src[markers[0].End:])
}

func TestScanMarkersMultiple(t *testing.T) {
	src := "BLOCK_ID: ABCD-EFGH-JKM\nfirst\nBLOCK_ID: NPQR-STUV-WXY\nsecond"
	markers := scanMarkers(src)
	require.Len(t, markers, 2)
	assert.Equal(t, "ABCD-EFGH-JKM", markers[0].Code)
	assert.Equal(t, "NPQR-STUV-WXY", markers[1].Code)
	assert.Less(t, markers[0].End, markers[1].Start)
}

func TestScanMarkersRejectsShortRuns(t *testing.T) {
	srcs := []string{
		"BLOCK ID: see map",
		"the block identifier scheme",
		"BLOCK_ID:",
		"BLOCK_ID: https://example.com/x",
	}
	for _, src := range srcs {
		assert.Empty(t, scanMarkers(src), "input %q", src)
	}
}

func TestScanMarkersCapsRunawayRuns(t *testing.T) {
	src := "BLOCKID: 0123456789abcdefghijklmnop end"
	markers := scanMarkers(src)
	require.Len(t, markers, 1)
	assert.Len(t, markers[0].Code, maxCodeSymbols)
}

func TestScanLegacy(t *testing.T) {
	src := "intro [[BLOCK ID: blk-alpha]] body text [[block_id: blk-beta]] tail"
	markers := scanLegacy(src)
	require.Len(t, markers, 2)
	assert.Equal(t, "blk-alpha", markers[0].Code)
	assert.Equal(t, "blk-beta", markers[1].Code)
	assert.Equal(t, " body text ", src[markers[0].End:markers[1].Start])
}

func TestScanLegacyPaddedBody(t *testing.T) {
	markers := scanLegacy("[[ BLOCK ID : blk-alpha ]]")
	require.Len(t, markers, 1)
	assert.Equal(t, "blk-alpha", markers[0].Code)
}

func TestScanLegacyIgnoresPlainBrackets(t *testing.T) {
	assert.Empty(t, scanLegacy("[[see figure 2]] and [[note]]"))
	assert.Empty(t, scanLegacy("[[BLOCK ID: unterminated"))
	assert.Empty(t, scanLegacy("no brackets at all"))
}
