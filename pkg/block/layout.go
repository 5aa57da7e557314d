package block

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Layout is the annotation interchange document listing every block of a
// job, as produced by the annotation editor.
type Layout struct {
	Name   string   `json:"name,omitempty"`
	Pages  int      `json:"pages,omitempty"`
	Blocks []*Block `json:"blocks"`
}

// LoadLayout reads and validates a layout JSON file. Blocks without a
// shape default to rect; blocks without an identifier get a generated
// UUID so every block is addressable downstream.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := l.Normalize(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Normalize backfills defaults and validates every block.
func (l *Layout) Normalize() error {
	if len(l.Blocks) == 0 {
		return fmt.Errorf("layout has no blocks")
	}
	seen := make(map[string]bool, len(l.Blocks))
	for i, b := range l.Blocks {
		if b == nil {
			return fmt.Errorf("layout block %d is null", i)
		}
		if b.Shape == "" {
			b.Shape = ShapeRect
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate block id %s", b.ID)
		}
		seen[b.ID] = true
		if err := b.Validate(); err != nil {
			return err
		}
		if l.Pages > 0 && b.Page >= l.Pages {
			return fmt.Errorf("block %s: page %d beyond page count %d", b.ID, b.Page, l.Pages)
		}
	}
	return nil
}

// IDs returns the block identifiers in layout order.
func (l *Layout) IDs() []string {
	out := make([]string, len(l.Blocks))
	for i, b := range l.Blocks {
		out[i] = b.ID
	}
	return out
}
