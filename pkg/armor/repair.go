package armor

import "fmt"

// MaxEdits bounds the simultaneous substitution search. Repair never
// explores more than MaxEdits substitutions for a length-correct code.
const MaxEdits = 3

// Confusions maps an observed symbol to the alphabet symbols an OCR pass
// most often intends by it. Keys outside the alphabet cover glyphs the
// model produces for symbols it misread; values are always alphabet
// members. Substitution repair tries these before the full alphabet.
var Confusions = map[byte][]byte{
	'0': {'Q', 'D', 'U'},
	'O': {'Q', 'D', 'U'},
	'1': {'L', 'J', 'T'},
	'I': {'L', 'J', 'T'},
	'2': {'Z'},
	'3': {'B', 'E'},
	'5': {'S', 'G'},
	'6': {'G', 'C'},
	'8': {'B', 'S'},
	'9': {'G', 'Q'},
	'4': {'A', 'H'},
	'A': {'4'},
	'7': {'T', 'Z'},
	'T': {'7', 'Y'},
	'Z': {'7'},
	'B': {'E', 'R'},
	'C': {'G', 'E'},
	'D': {'Q', 'U'},
	'E': {'F', 'B'},
	'F': {'E', 'P'},
	'G': {'C', 'Q'},
	'H': {'N', 'K'},
	'J': {'L'},
	'K': {'X', 'H'},
	'L': {'J', 'E'},
	'M': {'N', 'W'},
	'N': {'M', 'H'},
	'P': {'F', 'R'},
	'Q': {'D', 'G'},
	'R': {'P', 'B'},
	'U': {'V', 'D'},
	'V': {'U', 'Y'},
	'W': {'V', 'M'},
	'X': {'K', 'Y'},
	'Y': {'V', 'T'},
}

// Repair attempts to fix a corrupted code. It cleans the input, tries a
// straight decode, then walks the repair ladder: a single insertion when the
// code is one symbol short, a single deletion when one long, and otherwise
// 1 to MaxEdits simultaneous substitutions with confusion table candidates
// tried before the rest of the alphabet. The first checksum-valid candidate
// wins; ok is false when nothing within the bound validates. The note
// describes which rung produced the fix.
func Repair(noisy string) (fixed Code, note string, ok bool) {
	cleaned := []byte(Clean(noisy))
	if validate(cleaned) {
		return Code(cleaned), "checksum valid", true
	}
	switch len(cleaned) {
	case CodeLen - 1:
		if c, ok := repairInsert(cleaned); ok {
			return c, "one symbol inserted", true
		}
	case CodeLen + 1:
		if c, ok := repairDelete(cleaned); ok {
			return c, "one symbol deleted", true
		}
	case CodeLen:
		for k := 1; k <= MaxEdits; k++ {
			if c, ok := repairSubstitute(cleaned, k); ok {
				return c, fmt.Sprintf("%d substitution(s)", k), true
			}
		}
	}
	return "", "not repairable", false
}

// repairInsert tries every alphabet symbol at every position of a code that
// is one symbol short.
func repairInsert(cleaned []byte) (Code, bool) {
	buf := make([]byte, CodeLen)
	for pos := 0; pos <= len(cleaned); pos++ {
		copy(buf, cleaned[:pos])
		copy(buf[pos+1:], cleaned[pos:])
		for i := 0; i < len(Alphabet); i++ {
			buf[pos] = Alphabet[i]
			if validate(buf) {
				return Code(buf), true
			}
		}
	}
	return "", false
}

// repairDelete tries dropping each single position of a code that is one
// symbol long.
func repairDelete(cleaned []byte) (Code, bool) {
	buf := make([]byte, CodeLen)
	for pos := 0; pos < len(cleaned); pos++ {
		copy(buf, cleaned[:pos])
		copy(buf[pos:], cleaned[pos+1:])
		if validate(buf) {
			return Code(buf), true
		}
	}
	return "", false
}

// repairSubstitute searches all combinations of exactly k simultaneous
// substitutions over a length-correct code, depth first in position order.
func repairSubstitute(cleaned []byte, k int) (Code, bool) {
	buf := make([]byte, CodeLen)
	copy(buf, cleaned)

	var try func(depth, start int) bool
	try = func(depth, start int) bool {
		if depth == k {
			return validate(buf)
		}
		for pos := start; pos <= CodeLen-(k-depth); pos++ {
			orig := buf[pos]
			for _, c := range substitutionCandidates(orig) {
				if c == orig {
					continue
				}
				buf[pos] = c
				if try(depth+1, pos+1) {
					return true
				}
			}
			buf[pos] = orig
		}
		return false
	}
	if try(0, 0) {
		return Code(buf), true
	}
	return "", false
}

// candidateTable holds the per-symbol substitution order: the confusion
// entries for the observed symbol first, then the remaining alphabet.
// Built once so the substitution search allocates nothing.
var candidateTable [256][]byte

func init() {
	for observed := 0; observed < 256; observed++ {
		confused := Confusions[byte(observed)]
		out := make([]byte, 0, len(confused)+len(Alphabet))
		seen := [256]bool{}
		for _, c := range confused {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		for i := 0; i < len(Alphabet); i++ {
			c := Alphabet[i]
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		candidateTable[observed] = out
	}
}

// substitutionCandidates returns the candidate symbols for one position.
func substitutionCandidates(observed byte) []byte {
	return candidateTable[observed]
}
