// Package editor is the server side of the layout editor. An Editor holds
// the tiles of one page canvas; every change re-serialises the whole
// canvas and hands the result to the host.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"folio/internal/blocks"
	"folio/internal/layout"
)

// ErrOutOfRange is returned for tile indexes outside the canvas.
var ErrOutOfRange = errors.New("tile index out of range")

// Editor is a single-user editing session. It is not safe for concurrent
// use.
type Editor struct {
	palette  *blocks.Registry
	doc      *layout.Document
	onChange func(string)
	last     string
}

// New mounts a canvas. A stored layout is decoded best effort: if it
// cannot be decoded the canvas starts empty and the problem is only
// logged. onChange may be nil.
func New(palette *blocks.Registry, existing string, onChange func(string)) *Editor {
	e := &Editor{palette: palette, onChange: onChange, doc: &layout.Document{}}
	if existing == "" {
		return e
	}
	doc, err := layout.Decode(existing)
	if err != nil {
		slog.Warn("layout could not be loaded, starting with an empty canvas", "error", err)
		return e
	}
	e.doc = doc
	return e
}

// Tiles returns the tiles on the canvas in order.
func (e *Editor) Tiles() []layout.Tile {
	return slices.Clone(e.doc.Tiles)
}

// CSS returns the canvas stylesheet.
func (e *Editor) CSS() string {
	return e.doc.CSS
}

// Layout returns the last serialised document, encoding the canvas if no
// change has been made yet.
func (e *Editor) Layout() string {
	if e.last == "" {
		e.last = e.encode()
	}
	return e.last
}

// Add appends a tile from the palette and returns its index.
func (e *Editor) Add(blockID string) (int, error) {
	if err := e.Insert(len(e.doc.Tiles), blockID); err != nil {
		return 0, err
	}
	return len(e.doc.Tiles) - 1, nil
}

// Insert places a tile from the palette at index i.
func (e *Editor) Insert(i int, blockID string) error {
	if i < 0 || i > len(e.doc.Tiles) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	t, err := e.palette.New(blockID)
	if err != nil {
		return err
	}
	e.doc.Tiles = slices.Insert(e.doc.Tiles, i, t)
	e.changed()
	return nil
}

// Update sets several traits of the tile at index i. Either every value is
// applied or, on error, the tile is left untouched.
func (e *Editor) Update(i int, traits map[string]string) error {
	cur, err := e.at(i)
	if err != nil {
		return err
	}

	if len(traits) == 0 {
		return nil
	}
	for name := range traits {
		if !hasTrait(cur, name) {
			return fmt.Errorf("%w: %s has no trait %q", layout.ErrUnknownTrait, cur.Kind(), name)
		}
	}

	// Only bento tiles have traits, so NewTile cannot return nil here.
	next := layout.NewTile(cur.Kind())
	for _, tr := range cur.Traits() {
		v := tr.Value
		if nv, ok := traits[tr.Name]; ok {
			v = nv
		}
		if err := next.SetTrait(tr.Name, v); err != nil {
			return err
		}
	}

	e.doc.Tiles[i] = next
	e.changed()
	return nil
}

// SetTrait sets one trait of the tile at index i.
func (e *Editor) SetTrait(i int, name, value string) error {
	return e.Update(i, map[string]string{name: value})
}

// Remove deletes the tile at index i.
func (e *Editor) Remove(i int) error {
	if _, err := e.at(i); err != nil {
		return err
	}
	e.doc.Tiles = slices.Delete(e.doc.Tiles, i, i+1)
	e.changed()
	return nil
}

// Move relocates the tile at index from so that it ends up at index to.
func (e *Editor) Move(from, to int) error {
	t, err := e.at(from)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(e.doc.Tiles) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, to)
	}
	e.doc.Tiles = slices.Delete(e.doc.Tiles, from, from+1)
	e.doc.Tiles = slices.Insert(e.doc.Tiles, to, t)
	e.changed()
	return nil
}

// SetStyle replaces the canvas stylesheet.
func (e *Editor) SetStyle(css string) {
	e.doc.CSS = css
	e.changed()
}

// Store emits the current document without changing it.
func (e *Editor) Store() {
	e.changed()
}

func (e *Editor) at(i int) (layout.Tile, error) {
	if i < 0 || i >= len(e.doc.Tiles) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return e.doc.Tiles[i], nil
}

func (e *Editor) changed() {
	e.last = e.encode()
	if e.onChange != nil {
		e.onChange(e.last)
	}
}

func (e *Editor) encode() string {
	out, err := layout.Encode(e.doc)
	if err != nil {
		slog.Error("failed to encode layout", "error", err)
		return e.last
	}
	return out
}

func hasTrait(t layout.Tile, name string) bool {
	for _, tr := range t.Traits() {
		if tr.Name == name {
			return true
		}
	}
	return false
}
