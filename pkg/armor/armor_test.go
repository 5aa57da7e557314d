package armor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeShape(t *testing.T) {
	ids := []string{
		"blk-0001",
		"page3/table-12",
		"a",
		"",
		"550e8400-e29b-41d4-a716-446655440000",
	}
	for _, id := range ids {
		c := Encode(id)
		require.Len(t, string(c), CodeLen, "id %q", id)
		for i := 0; i < len(c); i++ {
			assert.Contains(t, Alphabet, string(c[i]), "id %q symbol %d", id, i)
		}
		assert.Equal(t, string(c[0:4])+"-"+string(c[4:8])+"-"+string(c[8:11]), c.String())
	}
}

func TestEncodeDeterministic(t *testing.T) {
	assert.Equal(t, Encode("blk-0001"), Encode("blk-0001"))
	assert.NotEqual(t, Encode("blk-0001"), Encode("blk-0002"))
}

func TestDecodeRoundTrip(t *testing.T) {
	ids := []string{
		"blk-0001",
		"blk-0002",
		"some/very/long/identifier/with/slashes",
		"550e8400-e29b-41d4-a716-446655440000",
		"d9b2d63d-a233-4123-847a-0d2b26c5f7d9",
	}
	for _, id := range ids {
		c := Encode(id)
		v, ok := Decode(string(c))
		require.True(t, ok, "id %q code %s", id, c)
		assert.Equal(t, Prefix(id), v, "id %q", id)
	}
}

func TestDecodeSeparatorAndCaseInsensitive(t *testing.T) {
	c := Encode("blk-0042")
	want, ok := Decode(string(c))
	require.True(t, ok)

	variants := []string{
		c.String(),
		strings.ToLower(c.String()),
		string(c[0:4]) + " " + string(c[4:8]) + " " + string(c[8:11]),
		string(c[0:4]) + "_" + string(c[4:8]) + "." + string(c[8:11]),
		"  " + c.String() + "\t",
	}
	for _, in := range variants {
		v, ok := Decode(in)
		require.True(t, ok, "variant %q", in)
		assert.Equal(t, want, v, "variant %q", in)
	}
}

func TestDecodeRejects(t *testing.T) {
	c := string(Encode("blk-0042"))

	cases := map[string]string{
		"too short":      c[:CodeLen-1],
		"too long":       c + "A",
		"empty":          "",
		"foreign symbol": "0" + c[1:],
		"bad checksum":   flipLastChecksum(c),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Decode(in)
			assert.False(t, ok)
		})
	}
}

func TestPrefixUUIDVariants(t *testing.T) {
	lower := "550e8400-e29b-41d4-a716-446655440000"
	upper := strings.ToUpper(lower)
	assert.Equal(t, Prefix(lower), Prefix(upper))
	assert.Equal(t, Encode(lower), Encode(upper))
}

// flipLastChecksum replaces the final check symbol with a different
// alphabet symbol so that only the checksum is wrong.
func flipLastChecksum(code string) string {
	last := code[CodeLen-1]
	repl := Alphabet[0]
	if repl == last {
		repl = Alphabet[1]
	}
	return code[:CodeLen-1] + string(repl)
}
