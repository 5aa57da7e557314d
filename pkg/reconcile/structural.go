package reconcile

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ocrstitch/ocrstitch/pkg/armor"
)

// structuralScore is the confidence assigned when a block is recovered
// through markup structure rather than a marker.
const structuralScore = 90

// containerTags are the self-contained elements the structural fallback
// inspects when markers are missing. Models that drop the marker line
// usually still emit the block as one of these.
var containerTags = map[string]bool{
	"table":   true,
	"figure":  true,
	"img":     true,
	"pre":     true,
	"div":     true,
	"section": true,
}

// refAttrs are the attributes that may echo a block identifier, typically
// as part of a reference URL or an element id.
var refAttrs = []string{"src", "href", "alt", "id", "name", "title", "data-block"}

// container is one candidate element, pre-rendered for matching.
type container struct {
	tag    string
	refs   []string
	text   string
	markup string
}

// structural tries to recover still-unresolved blocks from the response's
// markup structure. An element whose reference attributes carry the
// identifier verbatim resolves with a fixed confidence; an element whose
// text holds a legacy bracket marker resolves with that marker's own
// match score.
func (e *Engine) structural(text string, set *armor.CodeSet, resolved map[string]*MatchResult) {
	if !strings.Contains(text, "<") {
		return
	}
	var missing []string
	for _, id := range set.IDs() {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return
	}
	containers := collectContainers(root)
	if len(containers) == 0 {
		return
	}

	used := make([]bool, len(containers))
	for _, id := range missing {
		idx, score, content, ok := findStructural(containers, used, id, e.cutoff)
		if !ok {
			continue
		}
		used[idx] = true
		resolved[id] = &MatchResult{
			ID:      id,
			Content: content,
			Method:  MethodStructural,
			Score:   score,
			Kind:    KindOK,
		}
	}
}

// findStructural picks the best unused container for one identifier.
// Attribute references win over legacy markers; among several candidates
// the most specific (smallest) container wins.
func findStructural(containers []container, used []bool, id string, cutoff int) (idx, score int, content string, ok bool) {
	// identifiers this short collide with ordinary markup
	if len(id) < 3 {
		return 0, 0, "", false
	}

	best := -1
	for i, c := range containers {
		if used[i] || !refsContain(c.refs, id) {
			continue
		}
		if best < 0 || len(c.markup) < len(containers[best].markup) {
			best = i
		}
	}
	if best >= 0 {
		return best, structuralScore, containers[best].markup, true
	}

	bestScore := 0
	bestContent := ""
	for i, c := range containers {
		if used[i] || c.text == "" {
			continue
		}
		for _, m := range scanLegacy(c.text) {
			s := legacyIDScore(m.Code, id)
			if s < cutoff || s < bestScore {
				continue
			}
			if s > bestScore || len(c.text) < len(containers[best].text) {
				best, bestScore = i, s
				bestContent = strings.TrimSpace(c.text[:m.Start] + c.text[m.End:])
			}
		}
	}
	if best >= 0 {
		return best, bestScore, bestContent, true
	}
	return 0, 0, "", false
}

// legacyIDScore compares a captured legacy identifier against one expected
// identifier, case-folded.
func legacyIDScore(raw, id string) int {
	if strings.EqualFold(raw, id) {
		return 100
	}
	return armor.Similarity(strings.ToUpper(raw), strings.ToUpper(id))
}

func refsContain(refs []string, id string) bool {
	needle := strings.ToLower(id)
	for _, ref := range refs {
		if strings.Contains(strings.ToLower(ref), needle) {
			return true
		}
	}
	return false
}

// collectContainers walks the parsed tree and renders every candidate
// element in document order.
func collectContainers(root *html.Node) []container {
	var out []container
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && containerTags[n.Data] {
			c := container{
				tag:    n.Data,
				text:   textContent(n),
				markup: renderNode(n),
			}
			for _, attr := range refAttrs {
				if v := getAttrVal(n, attr); v != "" {
					c.refs = append(c.refs, v)
				}
			}
			out = append(out, c)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

// textContent gets all text from a node and its children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := textContent(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// renderNode serializes one element back to markup.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// getAttrVal returns the value of a specific attribute from a node.
func getAttrVal(n *html.Node, attrName string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrName {
			return attr.Val
		}
	}
	return ""
}
