package reconcile

import (
	"strings"

	"github.com/ocrstitch/ocrstitch/pkg/armor"
)

// Marker is one identifier occurrence found in a response. Start points at
// the keyword, End just past the captured code run, so the content of the
// block runs from End to the next marker's Start.
type Marker struct {
	Start int
	End   int
	Code  string
}

// maxCodeSymbols caps a code run so a keyword glued to a long token (a
// URL, a hash) cannot swallow the rest of the line.
const maxCodeSymbols = armor.CodeLen + 6

// scanMarkers walks a response once and returns every BLOCK_ID marker in
// order of appearance. It is a hand-written scanner rather than a regexp
// so the noise tolerance stays explicit: the keyword matches in any case,
// the words may be joined by hyphens, underscores or spaces, the colon is
// optional, and the code run may carry separator noise of its own.
func scanMarkers(src string) []Marker {
	var out []Marker
	pos := 0
	for pos < len(src) {
		start, codeStart, ok := findKeyword(src, pos)
		if !ok {
			break
		}
		end, ok := captureCode(src, codeStart)
		if !ok {
			pos = codeStart
			continue
		}
		out = append(out, Marker{Start: start, End: end, Code: src[codeStart:end]})
		pos = end
	}
	return out
}

// scanLegacy returns the bracket-style markers of the previous pipeline
// generation: [[BLOCK ID: <identifier>]]. The identifier between colon and
// closing brackets is captured verbatim.
func scanLegacy(src string) []Marker {
	var out []Marker
	pos := 0
	for {
		rel := strings.Index(src[pos:], "[[")
		if rel < 0 {
			return out
		}
		start := pos + rel
		inner := start + 2
		closing := strings.Index(src[inner:], "]]")
		if closing < 0 {
			return out
		}
		end := inner + closing + 2
		body := src[inner : inner+closing]
		if id, ok := legacyBody(body); ok {
			out = append(out, Marker{Start: start, End: end, Code: id})
		}
		pos = end
	}
}

// legacyBody extracts the identifier from the inside of a bracket marker.
func legacyBody(body string) (string, bool) {
	i := skipRun(body, 0, " \t")
	if !foldHasAt(body, i, "BLOCK") {
		return "", false
	}
	i += 5
	i = skipRun(body, i, "-_ \t")
	if !foldHasAt(body, i, "ID") {
		return "", false
	}
	i += 2
	if i < len(body) && isAlnum(body[i]) {
		return "", false
	}
	i = skipRun(body, i, " \t")
	if i < len(body) && body[i] == ':' {
		i++
	}
	id := strings.TrimSpace(body[i:])
	if id == "" {
		return "", false
	}
	return id, true
}

// findKeyword locates the next BLOCK_ID keyword at or after from. It
// returns the keyword's start offset and the offset where the code run
// begins.
func findKeyword(src string, from int) (start, codeStart int, ok bool) {
	for i := from; i+5 <= len(src); i++ {
		if !foldHasAt(src, i, "BLOCK") {
			continue
		}
		j := skipRun(src, i+5, "-_ \t")
		if !foldHasAt(src, j, "ID") {
			continue
		}
		j += 2
		// a word boundary keeps "identifier" and friends from matching
		if j < len(src) && isAlnum(src[j]) {
			continue
		}
		j = skipRun(src, j, " \t")
		if j < len(src) && src[j] == ':' {
			j++
		}
		j = skipRun(src, j, " \t")
		return i, j, true
	}
	return 0, 0, false
}

// captureCode consumes an identifier run: alphanumeric symbols with
// hyphen, underscore, dot and space noise. A space ends the run once the
// symbol count could already be a full code, so the first content word
// after the marker is not swallowed; shorter runs keep reading across
// spaces because OCR sometimes breaks a code into spaced groups.
func captureCode(src string, from int) (end int, ok bool) {
	symbols := 0
	last := -1
	i := from
scan:
	for i < len(src) {
		c := src[i]
		switch {
		case isAlnum(c):
			symbols++
			last = i
			if symbols >= maxCodeSymbols {
				break scan
			}
		case c == '-' || c == '_' || c == '.':
			// separator noise inside the run
		case c == ' ' || c == '\t':
			if symbols >= armor.CodeLen-1 {
				break scan
			}
		default:
			break scan
		}
		i++
	}
	if symbols < armor.PayloadLen || last < 0 {
		return 0, false
	}
	return last + 1, true
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

// foldHasAt reports whether src carries word at offset i, ignoring ASCII
// case.
func foldHasAt(src string, i int, word string) bool {
	if i < 0 || i+len(word) > len(src) {
		return false
	}
	for k := 0; k < len(word); k++ {
		c := src[i+k]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != word[k] {
			return false
		}
	}
	return true
}

// skipRun advances past any run of the given byte set.
func skipRun(src string, i int, set string) int {
	for i < len(src) && strings.IndexByte(set, src[i]) >= 0 {
		i++
	}
	return i
}
