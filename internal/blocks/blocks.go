// Package blocks holds the palette of tiles offered by the layout editor.
package blocks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"folio/internal/layout"
)

var (
	// ErrDuplicateBlock is returned when registering an id twice.
	ErrDuplicateBlock = errors.New("block already registered")

	// ErrUnknownBlock is returned for ids that were never registered.
	ErrUnknownBlock = errors.New("unknown block")
)

// Category groups blocks in the palette.
const Category = "Bento"

// Block is one palette entry. Bento blocks create a tile with traits;
// static blocks insert fixed markup.
type Block struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Category string      `json:"category"`
	Kind     layout.Kind `json:"kind"`
	Static   string      `json:"-"`
}

// Registry is an ordered, concurrency-safe set of blocks.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	blocks map[string]Block
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{blocks: make(map[string]Block)}
}

// Register adds b to the palette.
func (r *Registry) Register(b Block) error {
	if b.ID == "" {
		return errors.New("block id is required")
	}
	if b.Kind == layout.KindStatic {
		if b.Static == "" {
			return fmt.Errorf("static block %q has no markup", b.ID)
		}
	} else if layout.NewTile(b.Kind) == nil {
		return fmt.Errorf("block %q: %w kind %q", b.ID, ErrUnknownBlock, b.Kind)
	}
	if b.Category == "" {
		b.Category = Category
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocks[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBlock, b.ID)
	}
	r.blocks[b.ID] = b
	r.order = append(r.order, b.ID)
	return nil
}

// Lookup returns the block registered under id.
func (r *Registry) Lookup(id string) (Block, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[id]
	return b, ok
}

// All returns the blocks in registration order.
func (r *Registry) All() []Block {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Block, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.blocks[id])
	}
	return out
}

// New returns a fresh tile for the block registered under id.
func (r *Registry) New(id string) (layout.Tile, error) {
	b, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}
	if b.Kind == layout.KindStatic {
		return &layout.Static{Block: b.ID, HTML: b.Static}, nil
	}
	return layout.NewTile(b.Kind), nil
}

// Markup returns the default markup a block inserts.
func (r *Registry) Markup(id string) (string, error) {
	t, err := r.New(id)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := layout.EncodeTile(&b, t); err != nil {
		return "", fmt.Errorf("render block %s: %w", id, err)
	}
	return b.String(), nil
}
