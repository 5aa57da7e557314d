package armor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet() *CodeSet {
	return NewCodeSet([]string{"blk-a", "blk-b", "blk-c"})
}

func TestMatchExact(t *testing.T) {
	set := testSet()
	code := Encode("blk-b")

	for _, in := range []string{string(code), code.String(), code.String() + " "} {
		id, score, kind := Match(in, set, 0)
		assert.Equal(t, "blk-b", id, "input %q", in)
		assert.Equal(t, 100, score, "input %q", in)
		assert.Equal(t, MatchExact, kind, "input %q", in)
	}
}

func TestMatchRepaired(t *testing.T) {
	set := testSet()
	code := string(Encode("blk-c"))

	noisy := "0" + code[1:]
	id, score, kind := Match(noisy, set, 0)
	assert.Equal(t, "blk-c", id)
	assert.Equal(t, 100, score)
	assert.Equal(t, MatchRepaired, kind)
}

func TestMatchFuzzyFallback(t *testing.T) {
	set := testSet()
	code := string(Encode("blk-a"))

	// One symbol dropped and another replaced by a foreign glyph: the
	// insertion rung cannot clear the foreign symbol, so repair gives up
	// and similarity picks the closest expected code.
	noisy := code[:3] + "#" + code[4:CodeLen-1]
	require.Len(t, noisy, CodeLen-1)

	id, score, kind := Match(noisy, set, 0)
	assert.Equal(t, "blk-a", id)
	assert.GreaterOrEqual(t, score, DefaultCutoff)
	assert.Less(t, score, 100)
	assert.Equal(t, MatchFuzzy, kind)
}

func TestMatchCutoff(t *testing.T) {
	set := testSet()
	code := string(Encode("blk-a"))
	noisy := code[:3] + "#" + code[4:CodeLen-1]

	id, score, kind := Match(noisy, set, 95)
	assert.Equal(t, "", id)
	assert.Equal(t, 0, score)
	assert.Equal(t, MatchNone, kind)
}

func TestMatchGarbage(t *testing.T) {
	set := testSet()

	for _, in := range []string{"", "ZZZZZZZZZZZ", "!!!", "the quick brown fox"} {
		id, score, kind := Match(in, set, 0)
		if kind != MatchNone {
			// Heavy corruption may still repair into some valid code,
			// but it must never claim an expected identifier.
			assert.Fail(t, "unexpected match", "input %q -> %s (%d)", in, id, score)
		}
		assert.Equal(t, "", id)
		assert.Equal(t, 0, score)
	}
}

func TestMatchEmptySet(t *testing.T) {
	id, score, kind := Match(string(Encode("blk-a")), NewCodeSet(nil), 0)
	assert.Equal(t, "", id)
	assert.Equal(t, 0, score)
	assert.Equal(t, MatchNone, kind)

	id, _, kind = Match("anything", nil, 0)
	assert.Equal(t, "", id)
	assert.Equal(t, MatchNone, kind)
}

func TestCodeSetLookup(t *testing.T) {
	set := testSet()
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"blk-a", "blk-b", "blk-c"}, set.IDs())

	id, ok := set.Lookup(Encode("blk-b"))
	require.True(t, ok)
	assert.Equal(t, "blk-b", id)

	_, ok = set.Lookup(Encode("blk-unknown"))
	assert.False(t, ok)
}

func TestCodeSetDuplicateCodeKeepsFirst(t *testing.T) {
	set := NewCodeSet([]string{"blk-a", "blk-a"})
	assert.Equal(t, 2, set.Len())
	id, ok := set.Lookup(Encode("blk-a"))
	require.True(t, ok)
	assert.Equal(t, "blk-a", id)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("ABCD", "ABCD"))
	assert.Equal(t, 100, Similarity("", ""))
	assert.Equal(t, 0, Similarity("", "ABCD"))
	assert.Equal(t, 57, Similarity("kitten", "sitting"))
	assert.Equal(t, 75, Similarity("ABCD", "ABXD"))
}
