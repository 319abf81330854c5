/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package wheel holds the selection core of namewheel: the ordered pool of
// entries, the constrained subset, and the mapping from a spin rotation to a
// winning entry.
package wheel

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
)

// pointerAngle is where the fixed pointer sits, measured clockwise from the
// right-hand side of the wheel.
const pointerAngle = 270

var (
	ErrInvalidState    = errors.New("wheel needs at least two entries to spin")
	ErrIndexOutOfRange = errors.New("entry index out of range")
	ErrInvalidRotation = errors.New("rotation must be a finite number of degrees")
)

// Entry is one candidate on the wheel.
type Entry struct {
	ID    ulid.ULID `json:"id"`
	Label string    `json:"label"`
	Note  string    `json:"note"`
}

// Winner is a snapshot of the winning entry, taken before it was removed.
type Winner struct {
	Index       int   `json:"index"`
	Entry       Entry `json:"entry"`
	Constrained bool  `json:"constrained"`
}

type Option func(*Pool)

// WithSource sets the random source used when the constrained subset
// overrides the geometric winner.
func WithSource(src Source) Option {
	return func(p *Pool) {
		if src != nil {
			p.src = src
		}
	}
}

// WithIDs sets the entry id generator.
func WithIDs(next func() ulid.ULID) Option {
	return func(p *Pool) {
		if next != nil {
			p.nextID = next
		}
	}
}

// Pool is not safe for concurrent use; it belongs to exactly one caller.
type Pool struct {
	entries     []Entry
	constrained map[ulid.ULID]struct{}

	src    Source
	nextID func() ulid.ULID
}

func NewPool(opts ...Option) *Pool {
	p := &Pool{
		constrained: make(map[ulid.ULID]struct{}),
		src:         CryptoSource(),
		nextID:      ulid.Make,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParseEntries turns free-form input into entries, one per non-blank line.
// The first comma separates the label from the note. IDs are left zero.
func ParseEntries(raw string) []Entry {
	var entries []Entry

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		label, note, _ := strings.Cut(line, ",")

		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}

		entries = append(entries, Entry{
			Label: label,
			Note:  strings.TrimSpace(note),
		})
	}

	return entries
}

// AddEntries appends every entry parsed from raw and returns how many were added.
func (p *Pool) AddEntries(raw string) int {
	return p.Append(ParseEntries(raw)...)
}

// Append adds already-parsed entries, assigning fresh ids.
func (p *Pool) Append(entries ...Entry) int {
	for _, e := range entries {
		e.ID = p.nextID()
		p.entries = append(p.entries, e)
	}

	return len(entries)
}

func (p *Pool) ToggleConstraint(index int, included bool) {
	if index < 0 || index >= len(p.entries) {
		return
	}

	id := p.entries[index].ID

	if included {
		p.constrained[id] = struct{}{}
	} else {
		delete(p.constrained, id)
	}
}

func (p *Pool) Clear() {
	p.entries = nil
	p.constrained = make(map[ulid.ULID]struct{})
}

// ResolveWinner picks the winner for a wheel that stopped at rotationDegrees.
// With an empty constrained subset the result depends only on the angle and
// the entry count. Otherwise the angle is ignored and one constrained entry
// is drawn uniformly at random.
func (p *Pool) ResolveWinner(rotationDegrees float64) (Winner, error) {
	if len(p.entries) < 2 {
		return Winner{}, ErrInvalidState
	}

	if math.IsNaN(rotationDegrees) || math.IsInf(rotationDegrees, 0) {
		return Winner{}, ErrInvalidRotation
	}

	if members := p.Constrained(); len(members) > 0 {
		index := members[p.src.IntN(len(members))]

		return Winner{
			Index:       index,
			Entry:       p.entries[index],
			Constrained: true,
		}, nil
	}

	index := AngleIndex(rotationDegrees, len(p.entries))

	return Winner{
		Index: index,
		Entry: p.entries[index],
	}, nil
}

// AngleIndex returns the wedge under the pointer for a wheel of n wedges
// rotated by rotationDegrees. Non-finite rotations map to wedge 0.
func AngleIndex(rotationDegrees float64, n int) int {
	if math.IsNaN(rotationDegrees) || math.IsInf(rotationDegrees, 0) {
		return 0
	}

	anglePerSegment := 360 / float64(n)

	finalRotation := math.Mod(rotationDegrees, 360)
	if finalRotation < 0 {
		finalRotation += 360
	}

	angle := math.Mod(pointerAngle+finalRotation, 360)

	index := int(math.Floor(angle / anglePerSegment))
	if index >= n {
		// floating point can land exactly on 360 for rotations a hair below a full turn
		index = n - 1
	}

	return index
}

func (p *Pool) ApplyWinnerRemoval(index int) error {
	if index < 0 || index >= len(p.entries) {
		return ErrIndexOutOfRange
	}

	delete(p.constrained, p.entries[index].ID)
	p.entries = slices.Delete(p.entries, index, index+1)

	return nil
}

// Spin resolves the winner and removes it from the pool in one step.
func (p *Pool) Spin(rotationDegrees float64) (Winner, error) {
	w, err := p.ResolveWinner(rotationDegrees)
	if err != nil {
		return Winner{}, err
	}

	if err := p.ApplyWinnerRemoval(w.Index); err != nil {
		return Winner{}, err
	}

	return w, nil
}

// Entries returns a copy of the entries in wheel order, never nil.
func (p *Pool) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)

	return out
}

func (p *Pool) Len() int {
	return len(p.entries)
}

func (p *Pool) CanSpin() bool {
	return len(p.entries) >= 2
}

func (p *Pool) IsConstrained(index int) bool {
	if index < 0 || index >= len(p.entries) {
		return false
	}

	_, ok := p.constrained[p.entries[index].ID]

	return ok
}

// Constrained returns the current positions of constrained entries, ascending.
func (p *Pool) Constrained() []int {
	indices := make([]int, 0, len(p.constrained))

	if len(p.constrained) == 0 {
		return indices
	}

	for i, e := range p.entries {
		if _, ok := p.constrained[e.ID]; ok {
			indices = append(indices, i)
		}
	}

	return indices
}
