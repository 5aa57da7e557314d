// Package reconcile maps a composite OCR response back onto the blocks
// that were stitched into the prompt image.
//
// Key Features:
//   - Marker scan: finds BLOCK_ID separator lines in the response text,
//     resolves their armored codes and slices the content between them
//   - Legacy scan: falls back to the [[BLOCK ID: ...]] bracket markers of
//     the previous pipeline generation when no primary marker matched
//   - Structural fallback: recovers marker-less blocks from HTML
//     containers whose attributes or inner markers reference them
//   - Result tracking: a concurrency-safe ResultSet with tagged outcomes,
//     JSON persistence and read compatibility with sentinel-style files
//
// Main Functions:
//   - NewEngine: creates a reconciliation engine with a fuzzy cutoff
//   - Engine.Reconcile: resolves one response against expected blocks
//   - NewResultSet, ResultSet.Put, ResultSet.Eligible, ResultSet.Save
//   - Load: reads a persisted result file, including legacy formats
package reconcile

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ocrstitch/ocrstitch/pkg/armor"
)

// Engine resolves composite OCR responses. It holds only tuning state and
// is safe for concurrent use.
type Engine struct {
	cutoff int
}

// NewEngine returns an engine using the given fuzzy-match cutoff; zero or
// negative selects the default.
func NewEngine(cutoff int) *Engine {
	if cutoff <= 0 {
		cutoff = armor.DefaultCutoff
	}
	return &Engine{cutoff: cutoff}
}

// occurrence is one marker resolved to an expected block.
type occurrence struct {
	start  int
	end    int
	id     string
	method Method
	score  int
}

// Reconcile maps one response onto the expected blocks. Content between
// consecutive markers belongs to the earlier marker's block; duplicate
// markers accumulate content and keep their best score. Results come back
// in expected-block order, covering only the blocks that resolved.
func (e *Engine) Reconcile(response string, set *armor.CodeSet) []MatchResult {
	if set == nil || set.Len() == 0 || strings.TrimSpace(response) == "" {
		return nil
	}
	// Vision models smuggle full-width and compatibility forms into
	// otherwise-ASCII output; fold them before any matching.
	text := norm.NFKC.String(response)

	occ := e.primary(text, set)
	if len(occ) == 0 {
		occ = e.legacy(text, set)
	}
	resolved := collectContent(text, occ)
	e.structural(text, set, resolved)

	out := make([]MatchResult, 0, len(resolved))
	for _, id := range set.IDs() {
		if r, ok := resolved[id]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// primary scans for BLOCK_ID markers and resolves their codes.
func (e *Engine) primary(text string, set *armor.CodeSet) []occurrence {
	var out []occurrence
	for _, m := range scanMarkers(text) {
		id, score, kind := armor.Match(m.Code, set, e.cutoff)
		if kind == armor.MatchNone {
			continue
		}
		out = append(out, occurrence{
			start:  m.Start,
			end:    m.End,
			id:     id,
			method: methodFor(kind),
			score:  score,
		})
	}
	return out
}

// legacy scans for bracket markers, which carry raw identifiers rather
// than armored codes, and matches them against the expected identifiers
// directly.
func (e *Engine) legacy(text string, set *armor.CodeSet) []occurrence {
	var out []occurrence
	for _, m := range scanLegacy(text) {
		id, score, ok := matchLegacyID(m.Code, set, e.cutoff)
		if !ok {
			continue
		}
		method := MethodFuzzy
		if score == 100 {
			method = MethodExact
		}
		out = append(out, occurrence{
			start:  m.Start,
			end:    m.End,
			id:     id,
			method: method,
			score:  score,
		})
	}
	return out
}

func matchLegacyID(raw string, set *armor.CodeSet, cutoff int) (string, int, bool) {
	bestID, bestScore := "", 0
	for _, id := range set.IDs() {
		s := legacyIDScore(raw, id)
		if s == 100 {
			return id, 100, true
		}
		if s > bestScore {
			bestID, bestScore = id, s
		}
	}
	if bestScore >= cutoff {
		return bestID, bestScore, true
	}
	return "", 0, false
}

func methodFor(kind armor.MatchKind) Method {
	switch kind {
	case armor.MatchExact:
		return MethodExact
	case armor.MatchRepaired:
		return MethodRepaired
	default:
		return MethodFuzzy
	}
}

// collectContent slices the text between consecutive occurrences and folds
// duplicates together: content accumulates in order of appearance, score
// and method follow the best occurrence.
func collectContent(text string, occ []occurrence) map[string]*MatchResult {
	sort.SliceStable(occ, func(i, j int) bool { return occ[i].start < occ[j].start })

	resolved := make(map[string]*MatchResult, len(occ))
	for i, o := range occ {
		end := len(text)
		if i+1 < len(occ) {
			end = occ[i+1].start
		}
		content := trimDangling(text[o.end:end])

		cur, ok := resolved[o.id]
		if !ok {
			resolved[o.id] = &MatchResult{
				ID:      o.id,
				Content: content,
				Method:  o.method,
				Score:   o.score,
				Kind:    KindOK,
			}
			continue
		}
		if content != "" {
			if cur.Content != "" {
				cur.Content += "\n"
			}
			cur.Content += content
		}
		if o.score > cur.Score {
			cur.Score = o.score
			cur.Method = o.method
		}
	}
	return resolved
}

// trimDangling strips markup fragments that belong to a neighboring
// marker's rendering rather than to the content itself: a closing tag or
// bracket pair left over from the marker before the content, and an
// opening tag or bracket pair begun for the marker after it.
func trimDangling(s string) string {
	for {
		t := strings.TrimLeft(s, " \t\r\n")
		if strings.HasPrefix(t, "</") {
			if i := strings.IndexByte(t, '>'); i >= 0 {
				s = t[i+1:]
				continue
			}
		}
		if strings.HasPrefix(t, "]]") {
			s = t[2:]
			continue
		}
		if strings.HasPrefix(t, "**") {
			s = t[2:]
			continue
		}
		if strings.HasPrefix(t, "`") {
			s = t[1:]
			continue
		}
		s = t
		break
	}
	for {
		t := strings.TrimRight(s, " \t\r\n")
		if strings.HasSuffix(t, "[[") {
			s = t[:len(t)-2]
			continue
		}
		if strings.HasSuffix(t, "**") {
			s = t[:len(t)-2]
			continue
		}
		if strings.HasSuffix(t, ">") && !strings.HasSuffix(t, "/>") {
			if i := strings.LastIndexByte(t, '<'); i >= 0 && isOpenWrapper(t[i:]) {
				s = t[:i]
				continue
			}
		}
		s = t
		break
	}
	return s
}

// wrapperTags are elements models open around a marker line; a trailing
// unclosed one belongs to the next block, not to this content.
var wrapperTags = map[string]bool{
	"p": true, "div": true, "span": true, "b": true, "strong": true,
	"em": true, "i": true, "li": true, "ul": true, "ol": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "td": true,
	"th": true, "pre": true, "code": true, "figure": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// isOpenWrapper reports whether tag is an opening wrapper element.
func isOpenWrapper(tag string) bool {
	if len(tag) < 3 || tag[0] != '<' || tag[1] == '/' {
		return false
	}
	i := 1
	for i < len(tag) && (tag[i] >= 'a' && tag[i] <= 'z' ||
		tag[i] >= 'A' && tag[i] <= 'Z' || tag[i] >= '0' && tag[i] <= '9') {
		i++
	}
	name := strings.ToLower(tag[1:i])
	return name != "" && wrapperTags[name]
}
