package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
)

// #region wildcards
// wildcards are constraint values that never restrict a query, normalized.
var wildcards = normalizedSet("", "anything", "dontcare", dialogue.Placeholder, dialogue.NoMatch)

func normalizedSet(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[dialogue.Normalize(v)] = struct{}{}
	}
	return m
}

func isWildcard(v string) bool {
	_, ok := wildcards[dialogue.Normalize(v)]
	return ok
}

// #endregion wildcards

// #region term
// term is one restricting constraint: the record attribute must share at
// least one value with Values.
type term struct {
	Slot   string   `json:"slot"`
	Values []string `json:"values"`
}

func newTerm(slot string, v any) (term, bool) {
	var vals []string
	for _, s := range dialogue.Strings(v) {
		if !isWildcard(s) {
			vals = append(vals, dialogue.Normalize(s))
		}
	}
	if len(vals) == 0 {
		return term{}, false
	}
	sort.Strings(vals)
	return term{Slot: slot, Values: vals}, true
}

// #endregion term

// #region database
// Database is the in-memory knowledge base. Queries are memoized per
// constraint set; the cache is guarded so one Database can back a server.
type Database struct {
	records  dialogue.Results
	matchKey string

	mu    sync.Mutex
	cache map[string]dialogue.Results
}

// NewDatabase deep-copies records. matchKey constraints never restrict a
// query because they echo a previous match announcement.
func NewDatabase(records dialogue.Results, matchKey string) *Database {
	return &Database{
		records:  records.Clone(),
		matchKey: matchKey,
		cache:    make(map[string]dialogue.Results),
	}
}

// LoadJSON reads a {record_key: {attr: value}} file.
func LoadJSON(path string) (dialogue.Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kb %s: %w", path, err)
	}
	var r dialogue.Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse kb %s: %w", path, err)
	}
	return r, nil
}

// Len returns the number of records.
func (d *Database) Len() int { return len(d.records) }

// Records returns a deep copy of every record.
func (d *Database) Records() dialogue.Results { return d.records.Clone() }

// terms turns a constraint view into restricting terms, sorted by slot.
func (d *Database) terms(c dialogue.Constraints) []term {
	var ts []term
	for slot, v := range c.Scalars {
		if slot == d.matchKey {
			continue
		}
		if t, ok := newTerm(slot, v); ok {
			ts = append(ts, t)
		}
	}
	if c.MappingSlot != "" {
		if t, ok := newTerm(c.MappingSlot, c.MappingValue); ok {
			ts = append(ts, t)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Slot < ts[j].Slot })
	return ts
}

// satisfies reports whether rec shares a value with t. Mapping slots also
// look inside the record's sub-offerings.
func satisfies(rec dialogue.Record, t term) bool {
	want := make(map[string]struct{}, len(t.Values))
	for _, v := range t.Values {
		want[v] = struct{}{}
	}
	for _, have := range dialogue.Strings(rec[t.Slot]) {
		if _, ok := want[dialogue.Normalize(have)]; ok {
			return true
		}
	}
	if dialogue.IsMappingSlot(t.Slot) {
		for _, m := range rec.Correlations() {
			if _, ok := want[dialogue.Normalize(m.Field(t.Slot))]; ok {
				return true
			}
		}
	}
	return false
}

func satisfiesAll(rec dialogue.Record, ts []term) bool {
	for _, t := range ts {
		if !satisfies(rec, t) {
			return false
		}
	}
	return true
}

// #endregion database

// #region query
// Query returns the records satisfying every constraint.
func (d *Database) Query(_ context.Context, c dialogue.Constraints) (dialogue.Results, error) {
	ts := d.terms(c)
	key, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("cache key: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if hit, ok := d.cache[string(key)]; ok {
		return hit.Clone(), nil
	}
	out := make(dialogue.Results)
	for k, rec := range d.records {
		if satisfiesAll(rec, ts) {
			out[k] = rec
		}
	}
	d.cache[string(key)] = out
	return out.Clone(), nil
}

// #endregion query

// #region aggregate
// AggregateQuery counts records per constrained slot and for all of them
// together. The user's current informs are folded into the constraints.
func (d *Database) AggregateQuery(_ context.Context, c dialogue.Constraints, user dialogue.Action) (dialogue.Aggregate, error) {
	bySlot := make(map[string]term)
	for _, t := range d.terms(c) {
		bySlot[t.Slot] = t
	}
	for slot, v := range user.InformSlots {
		if slot == d.matchKey {
			continue
		}
		if t, ok := newTerm(slot, v); ok {
			bySlot[slot] = t
		}
	}

	ts := make([]term, 0, len(bySlot))
	agg := dialogue.Aggregate{dialogue.MatchingAllKey: 0}
	for _, t := range bySlot {
		ts = append(ts, t)
		agg[t.Slot] = 0
	}
	for _, rec := range d.records {
		if satisfiesAll(rec, ts) {
			agg[dialogue.MatchingAllKey]++
		}
		for _, t := range ts {
			if satisfies(rec, t) {
				agg[t.Slot]++
			}
		}
	}
	return agg, nil
}

// #endregion aggregate

// #region fill
// FillInformSlot grounds the first proposed slot (by name) to its most
// frequent value among records matching every other constraint. Ties go to
// the lexicographically smallest value. For mapping slots the sub-offerings
// carrying the chosen value are returned alongside.
func (d *Database) FillInformSlot(ctx context.Context, proposed map[string]any, c dialogue.Constraints, _ dialogue.Action) (map[string]any, []dialogue.MatchObject, error) {
	if len(proposed) == 0 {
		return map[string]any{}, nil, nil
	}
	keys := make([]string, 0, len(proposed))
	for k := range proposed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slot := keys[0]

	others := dialogue.Constraints{
		Scalars:       make(map[string]any, len(c.Scalars)),
		MappingActive: c.MappingActive,
		MappingSlot:   c.MappingSlot,
		MappingValue:  c.MappingValue,
	}
	for k, v := range c.Scalars {
		if k != slot {
			others.Scalars[k] = v
		}
	}
	if others.MappingSlot == slot {
		others.MappingSlot, others.MappingValue = "", ""
	}

	results, err := d.Query(ctx, others)
	if err != nil {
		return nil, nil, err
	}

	type tally struct {
		display string
		count   int
	}
	counts := make(map[string]*tally)
	for _, rk := range results.Keys() {
		rec := results[rk]
		values := dialogue.Strings(rec[slot])
		if dialogue.IsMappingSlot(slot) {
			for _, m := range rec.Correlations() {
				values = append(values, m.Field(slot))
			}
		}
		seen := make(map[string]struct{})
		for _, v := range values {
			n := dialogue.Normalize(v)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			if counts[n] == nil {
				counts[n] = &tally{display: v}
			}
			counts[n].count++
		}
	}

	value := dialogue.NoMatch
	best := 0
	for n, t := range counts {
		if t.count > best || (t.count == best && n < dialogue.Normalize(value)) {
			best = t.count
			value = t.display
		}
	}

	var objs []dialogue.MatchObject
	if dialogue.IsMappingSlot(slot) && value != dialogue.NoMatch {
		seen := make(map[dialogue.MatchObject]struct{})
		for _, rk := range results.Keys() {
			for _, m := range results[rk].Correlations() {
				if !dialogue.EqualText(m.Field(slot), value) {
					continue
				}
				if _, dup := seen[m]; dup {
					continue
				}
				seen[m] = struct{}{}
				objs = append(objs, m)
			}
		}
	}
	return map[string]any{slot: value}, objs, nil
}

// #endregion fill
