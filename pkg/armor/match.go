package armor

// DefaultCutoff is the minimum similarity score for a fuzzy code match.
const DefaultCutoff = 70

// MatchKind tells how a noisy code was resolved.
type MatchKind int

const (
	// MatchNone means no expected identifier matched.
	MatchNone MatchKind = iota
	// MatchExact means the cleaned code validated as-is and belongs to the set.
	MatchExact
	// MatchRepaired means the repair ladder fixed the code into a set member.
	MatchRepaired
	// MatchFuzzy means edit-distance similarity picked the closest set member.
	MatchFuzzy
)

// CodeSet is the precomputed expected-identifier cache used while matching.
// It is built once per strip or job from the submitted block identifiers and
// passed into every match, so encoding work is never repeated per marker.
// A CodeSet is immutable after construction and safe for concurrent readers.
type CodeSet struct {
	ids    []string
	codes  []Code
	byCode map[Code]string
}

// NewCodeSet encodes the given identifiers in order. When two identifiers
// collapse to the same code the first one keeps it.
func NewCodeSet(ids []string) *CodeSet {
	s := &CodeSet{
		ids:    make([]string, 0, len(ids)),
		codes:  make([]Code, 0, len(ids)),
		byCode: make(map[Code]string, len(ids)),
	}
	for _, id := range ids {
		c := Encode(id)
		s.ids = append(s.ids, id)
		s.codes = append(s.codes, c)
		if _, dup := s.byCode[c]; !dup {
			s.byCode[c] = id
		}
	}
	return s
}

// IDs returns the identifiers in insertion order.
func (s *CodeSet) IDs() []string { return s.ids }

// Len returns the number of identifiers in the set.
func (s *CodeSet) Len() int { return len(s.ids) }

// Lookup resolves a cleaned code to its identifier.
func (s *CodeSet) Lookup(c Code) (string, bool) {
	id, ok := s.byCode[c]
	return id, ok
}

// Code returns the encoded form of the identifier at position i.
func (s *CodeSet) Code(i int) Code { return s.codes[i] }

// Match resolves a noisy code against the expected set. Repair runs first:
// when the repaired code belongs to the set the match scores 100, exact if
// the input validated without edits, repaired otherwise. When repair fails
// or lands outside the set, the cleaned input is compared against every
// expected code by Levenshtein similarity and the best score at or above
// cutoff wins. Cutoff values at or below zero fall back to DefaultCutoff.
func Match(noisy string, set *CodeSet, cutoff int) (id string, score int, kind MatchKind) {
	if set == nil || set.Len() == 0 {
		return "", 0, MatchNone
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}

	cleaned := Clean(noisy)
	if fixed, _, ok := Repair(noisy); ok {
		if id, found := set.Lookup(fixed); found {
			if string(fixed) == cleaned {
				return id, 100, MatchExact
			}
			return id, 100, MatchRepaired
		}
	}

	bestScore := 0
	bestID := ""
	for i, c := range set.codes {
		if s := Similarity(cleaned, string(c)); s > bestScore {
			bestScore = s
			bestID = set.ids[i]
		}
	}
	if bestScore >= cutoff {
		return bestID, bestScore, MatchFuzzy
	}
	return "", 0, MatchNone
}

// Similarity is a 0..100 Levenshtein ratio between two strings: 100 means
// equal, 0 means nothing in common.
func Similarity(a, b string) int {
	if a == b {
		return 100
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein(a, b)
	return (100*(longest-d) + longest/2) / longest
}

// levenshtein computes the edit distance between two strings holding only
// two rows of the classic dynamic programming matrix.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
