package constraint

import (
	"fmt"
	"sort"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
)

// #region mapping-table
// MappingRow is one candidate sub-offering recorded in a given round.
type MappingRow struct {
	Round int
	Match dialogue.MatchObject
}

// MappingTable joins the four mapping slots across turns. Rows only grow;
// the representative names the single mapping slot currently holding a value.
type MappingTable struct {
	rows     []MappingRow
	repSlot  string
	repValue string
	active   bool
}

// #endregion mapping-table

// #region store
// Store holds the grounded constraints of one episode.
type Store struct {
	scalars map[string]any
	mapping MappingTable
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{scalars: make(map[string]any)}
}

// SetScalar overwrites a scalar constraint with a deep copy of value.
func (s *Store) SetScalar(slot string, value any) error {
	if dialogue.IsMappingSlot(slot) {
		return fmt.Errorf("set scalar: %q is a mapping slot", slot)
	}
	s.scalars[slot] = dialogue.DeepCopy(value)
	return nil
}

// SetMapping makes slot the representative mapping slot. The other three
// mapping slots read back as the empty placeholder afterwards; their
// candidate columns are untouched.
func (s *Store) SetMapping(slot, value string) error {
	if !dialogue.IsMappingSlot(slot) {
		return fmt.Errorf("set mapping: %q is not a mapping slot", slot)
	}
	s.mapping.repSlot = slot
	s.mapping.repValue = value
	s.mapping.active = true
	return nil
}

// Set routes slot to SetMapping or SetScalar by static slot kind.
func (s *Store) Set(slot string, value any) error {
	if dialogue.IsMappingSlot(slot) {
		return s.SetMapping(slot, dialogue.Display(value))
	}
	return s.SetScalar(slot, value)
}

// AppendCandidates records one mapping row per match object.
func (s *Store) AppendCandidates(round int, objs []dialogue.MatchObject) {
	for _, m := range objs {
		s.mapping.rows = append(s.mapping.rows, MappingRow{Round: round, Match: m})
	}
}

// Representative returns the representative half of a mapping slot.
func (s *Store) Representative(slot string) string {
	if s.mapping.repSlot == slot {
		return s.mapping.repValue
	}
	return dialogue.EmptyPlaceholder
}

// RepresentativeSlot returns the mapping slot holding the representative
// value, or "" when none was informed.
func (s *Store) RepresentativeSlot() string { return s.mapping.repSlot }

// Candidates returns the column of slot across all mapping rows.
func (s *Store) Candidates(slot string) []string {
	out := make([]string, len(s.mapping.rows))
	for i, r := range s.mapping.rows {
		out[i] = r.Match.Field(slot)
	}
	return out
}

// Rows returns a copy of the mapping rows.
func (s *Store) Rows() []MappingRow {
	return append([]MappingRow(nil), s.mapping.rows...)
}

// Scalar returns a deep copy of a scalar constraint.
func (s *Store) Scalar(slot string) (any, bool) {
	v, ok := s.scalars[slot]
	if !ok {
		return nil, false
	}
	return dialogue.DeepCopy(v), true
}

// Has reports whether slot is present. Mapping slots are present as a group
// once any of them was informed.
func (s *Store) Has(slot string) bool {
	if dialogue.IsMappingSlot(slot) {
		return s.mapping.active
	}
	_, ok := s.scalars[slot]
	return ok
}

// HasMapping reports whether the mapping group is active.
func (s *Store) HasMapping() bool { return s.mapping.active }

// Slots returns the present slots in ascending order.
func (s *Store) Slots() []string {
	slots := make([]string, 0, len(s.scalars)+len(dialogue.MappingSlots))
	for k := range s.scalars {
		slots = append(slots, k)
	}
	if s.mapping.active {
		slots = append(slots, dialogue.MappingSlots[:]...)
	}
	sort.Strings(slots)
	return slots
}

// Snapshot returns a deep-copied read-only view.
func (s *Store) Snapshot() dialogue.Constraints {
	c := dialogue.Constraints{
		Scalars:       make(map[string]any, len(s.scalars)),
		MappingActive: s.mapping.active,
		MappingSlot:   s.mapping.repSlot,
		MappingValue:  s.mapping.repValue,
	}
	for k, v := range s.scalars {
		c.Scalars[k] = dialogue.DeepCopy(v)
	}
	for _, r := range s.mapping.rows {
		c.Candidates = append(c.Candidates, r.Match)
	}
	return c
}

// Reset clears every constraint.
func (s *Store) Reset() {
	s.scalars = make(map[string]any)
	s.mapping = MappingTable{}
}

// #endregion store
