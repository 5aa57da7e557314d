package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Method tells which path resolved a block's content.
type Method string

const (
	MethodExact      Method = "exact"
	MethodRepaired   Method = "repaired"
	MethodFuzzy      Method = "fuzzy"
	MethodStructural Method = "structural-fallback"
	MethodRetry      Method = "retry"
)

// Kind is the tagged outcome of a block. It replaces sniffing for the
// sentinel prefix in content strings: runtime decisions key off the tag,
// the sentinel only survives in persisted content for older consumers.
type Kind int

const (
	// KindOK is a resolved block with usable content.
	KindOK Kind = iota
	// KindMissing is a block no reconciliation path resolved.
	KindMissing
	// KindVendorError is a block whose OCR call failed outright.
	KindVendorError
)

// String returns the persistence form of the kind.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindMissing:
		return "missing"
	case KindVendorError:
		return "vendor_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrorSentinel is the fixed prefix marking failed-call content in
// persisted results. Older result files carry no status field; the loader
// recognizes this prefix instead.
const ErrorSentinel = "[OCR_ERROR]"

// SentinelContent renders a vendor failure in the sentinel convention.
func SentinelContent(msg string) string {
	if msg == "" {
		return ErrorSentinel
	}
	return ErrorSentinel + " " + msg
}

// MatchResult is the outcome of one block: its content segment, how it was
// resolved and with what confidence.
type MatchResult struct {
	ID      string
	Content string
	Method  Method
	Score   int
	Kind    Kind
	Err     string
}

// ResultSet maps every submitted block to its current MatchResult. It is
// created from the full job block list, filled in per strip and per retry,
// and persisted once. Writers are serialized internally; reconciliation
// and retry touch disjoint blocks but may run from different goroutines.
type ResultSet struct {
	mu      sync.Mutex
	ids     []string
	results map[string]MatchResult
}

// NewResultSet prepares an empty set covering the given block identifiers
// in document order.
func NewResultSet(ids []string) *ResultSet {
	return &ResultSet{
		ids:     append([]string(nil), ids...),
		results: make(map[string]MatchResult, len(ids)),
	}
}

// IDs returns the covered block identifiers in document order.
func (rs *ResultSet) IDs() []string { return rs.ids }

// Put stores or overwrites a block's result.
func (rs *ResultSet) Put(r MatchResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results[r.ID] = r
}

// Get returns a block's current result.
func (rs *ResultSet) Get(id string) (MatchResult, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.results[id]
	return r, ok
}

// MarkVendorError records a failed OCR call for every given block that has
// no successful result yet. Content carries the sentinel convention so
// persisted files stay readable by older tooling.
func (rs *ResultSet) MarkVendorError(ids []string, msg string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, id := range ids {
		if cur, ok := rs.results[id]; ok && cur.Kind == KindOK {
			continue
		}
		rs.results[id] = MatchResult{
			ID:      id,
			Content: SentinelContent(msg),
			Kind:    KindVendorError,
			Err:     msg,
		}
	}
}

// Eligible lists the blocks a verification pass should re-submit: blocks
// with no result, and blocks whose call failed.
func (rs *ResultSet) Eligible() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []string
	for _, id := range rs.ids {
		r, ok := rs.results[id]
		if !ok || r.Kind != KindOK {
			out = append(out, id)
		}
	}
	return out
}

// Counts returns how many blocks are resolved, missing and failed.
func (rs *ResultSet) Counts() (ok, missing, failed int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, id := range rs.ids {
		r, found := rs.results[id]
		switch {
		case !found || r.Kind == KindMissing:
			missing++
		case r.Kind == KindVendorError:
			failed++
		default:
			ok++
		}
	}
	return ok, missing, failed
}

// Record is the persisted form of one block's outcome.
type Record struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
	Method  Method `json:"method,omitempty"`
	Score   int    `json:"score,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Records renders the set in document order, materializing an explicit
// missing record for blocks that never resolved.
func (rs *ResultSet) Records() []Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Record, 0, len(rs.ids))
	for _, id := range rs.ids {
		r, ok := rs.results[id]
		if !ok {
			out = append(out, Record{ID: id, Status: KindMissing.String()})
			continue
		}
		out = append(out, Record{
			ID:      id,
			Status:  r.Kind.String(),
			Content: r.Content,
			Method:  r.Method,
			Score:   r.Score,
			Error:   r.Err,
		})
	}
	return out
}

// Save writes the set as an indented JSON array of records.
func (rs *ResultSet) Save(path string) error {
	data, err := json.MarshalIndent(rs.Records(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// Load reads a persisted result file back into a set. Files from before
// the status field are accepted: records whose content starts with the
// sentinel prefix come back as vendor errors, records with content as ok,
// the rest as missing.
func Load(path string) (*ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	rs := NewResultSet(nil)
	for _, rec := range records {
		rs.ids = append(rs.ids, rec.ID)
		rs.results[rec.ID] = MatchResult{
			ID:      rec.ID,
			Content: rec.Content,
			Method:  rec.Method,
			Score:   rec.Score,
			Kind:    kindFromRecord(rec),
			Err:     rec.Error,
		}
	}
	return rs, nil
}

// kindFromRecord resolves a record's kind, sniffing legacy files that
// predate the status field.
func kindFromRecord(rec Record) Kind {
	switch rec.Status {
	case "ok":
		return KindOK
	case "vendor_error":
		return KindVendorError
	case "missing":
		return KindMissing
	}
	if strings.HasPrefix(rec.Content, ErrorSentinel) {
		return KindVendorError
	}
	if rec.Content != "" {
		return KindOK
	}
	return KindMissing
}
