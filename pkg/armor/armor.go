// Package armor implements the checksummed block identifier codes embedded
// in composite strip images.
//
// A block identifier is folded into a short fixed-length code that survives
// a round trip through an OCR or vision model: the code uses a reduced
// alphabet with visually ambiguous characters removed, carries a three
// symbol checksum, and can be repaired when the model corrupts individual
// symbols.
//
// Key Features:
//
// - Deterministic encoding of arbitrary block identifiers into 11-symbol codes
// - Checksum verification with case and separator insensitive decoding
// - Bounded repair of corrupted codes (insertions, deletions, substitutions)
// - Fuzzy matching of noisy codes against an expected identifier set
//
// Main Functions:
//
// - Encode: derive the armor code for a block identifier
// - Decode: verify a code and recover its payload value
// - Repair: fix a corrupted code within the edit bound
// - Match: resolve a noisy code against a CodeSet of expected identifiers
package armor

import (
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Alphabet is the 26-symbol code alphabet. I and O are dropped for their
// 1/0 lookalikes; the digits 4 and 7 round the set back out to 26 so the
// checksum arithmetic stays base 26.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ47"

const (
	// PayloadLen is the number of payload symbols in a code.
	PayloadLen = 8
	// ChecksumLen is the number of checksum symbols appended to the payload.
	ChecksumLen = 3
	// CodeLen is the total cleaned code length.
	CodeLen = PayloadLen + ChecksumLen
)

// payloadSpace is 26^PayloadLen, the number of distinct payload values.
const payloadSpace = 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26

// symValue maps an uppercase alphabet byte to its symbol value, -1 otherwise.
var symValue [256]int8

func init() {
	for i := range symValue {
		symValue[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		symValue[Alphabet[i]] = int8(i)
	}
}

// Code is a cleaned armor code: CodeLen symbols from Alphabet, no separators.
type Code string

// String renders the code in its canonical display form PPPP-PPPP-CCC.
// Hyphens are cosmetic; Decode accepts the code with or without them.
func (c Code) String() string {
	if len(c) != CodeLen {
		return string(c)
	}
	return string(c[0:4]) + "-" + string(c[4:8]) + "-" + string(c[8:11])
}

// Prefix returns the deterministic payload value for a block identifier.
// Identifiers that parse as UUIDs contribute their first five bytes; any
// other identifier is hashed with FNV-1a. The 40-bit result is folded into
// the payload space, so Decode(Encode(id)) always recovers Prefix(id).
func Prefix(id string) uint64 {
	var v uint64
	if u, err := uuid.Parse(id); err == nil {
		for i := 0; i < 5; i++ {
			v = v<<8 | uint64(u[i])
		}
	} else {
		h := fnv.New64a()
		h.Write([]byte(id))
		v = h.Sum64() >> 24
	}
	return v % payloadSpace
}

// Encode derives the armor code for a block identifier.
func Encode(id string) Code {
	v := Prefix(id)
	var syms [CodeLen]byte
	for i := PayloadLen - 1; i >= 0; i-- {
		syms[i] = Alphabet[v%26]
		v /= 26
	}
	check := checksum(syms[:PayloadLen])
	copy(syms[PayloadLen:], check[:])
	return Code(syms[:])
}

// Decode cleans and verifies a code, returning its payload value.
// It reports false on wrong length, foreign symbols or checksum mismatch.
func Decode(code string) (uint64, bool) {
	cleaned := []byte(Clean(code))
	if !validate(cleaned) {
		return 0, false
	}
	var v uint64
	for i := 0; i < PayloadLen; i++ {
		v = v*26 + uint64(symValue[cleaned[i]])
	}
	return v, true
}

// Clean uppercases a code candidate and strips separator noise: whitespace,
// hyphens, underscores and dots. Foreign symbols are kept so that length
// based repair still sees them.
func Clean(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		switch {
		case r == '-' || r == '_' || r == '.' || r == '–' || r == '—':
			continue
		case unicode.IsSpace(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checksum computes the three check symbols for a payload: three
// independent position-weighted sums of symbol values mod 26. The weights
// are odd and skip 13 so every single symbol change disturbs all three sums.
func checksum(payload []byte) (out [ChecksumLen]byte) {
	for k := 0; k < ChecksumLen; k++ {
		sum := 0
		for i := 0; i < PayloadLen; i++ {
			sum += checksumWeights[k][i] * int(symValue[payload[i]])
		}
		out[k] = Alphabet[sum%26]
	}
	return out
}

// checksumWeights holds one weight row per check symbol. All entries are
// units mod 26.
var checksumWeights = [ChecksumLen][PayloadLen]int{
	{1, 3, 5, 7, 9, 11, 15, 17},
	{3, 5, 7, 9, 11, 15, 17, 19},
	{5, 7, 9, 11, 15, 17, 19, 21},
}

// validate reports whether a cleaned byte form is a checksum-valid code.
func validate(cleaned []byte) bool {
	if len(cleaned) != CodeLen {
		return false
	}
	for _, c := range cleaned {
		if symValue[c] < 0 {
			return false
		}
	}
	check := checksum(cleaned[:PayloadLen])
	for k := 0; k < ChecksumLen; k++ {
		if cleaned[PayloadLen+k] != check[k] {
			return false
		}
	}
	return true
}
