package dialogue

import "sort"

// #region reserved
const (
	IntentInform     = "inform"
	IntentRequest    = "request"
	IntentMatchFound = "match_found"

	// DefaultMatchKey is the slot under which a match announcement carries the
	// chosen record key. It doubles as the "nothing requested" default.
	DefaultMatchKey = "activity"

	// Placeholder is never a valid grounded value.
	Placeholder = "PLACEHOLDER"
	// NoMatch is the match key value when the knowledge base has no result.
	NoMatch = "no match available"
	// EmptyPlaceholder is the representative value of an unset mapping slot.
	EmptyPlaceholder = ""

	// CorrelationKey holds the per-record list of sub-offerings.
	CorrelationKey = "time_works_place_address_mapping"

	SlotWorks     = "works"
	SlotNamePlace = "name_place"
	SlotAddress   = "address"
	SlotTime      = "time"
)

// MappingSlots are the four slots that always co-vary, in column order.
var MappingSlots = [4]string{SlotWorks, SlotNamePlace, SlotAddress, SlotTime}

// IsMappingSlot reports static membership in MappingSlots.
func IsMappingSlot(slot string) bool {
	for _, s := range MappingSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// #endregion reserved

// #region speaker
// Speaker tags who produced an action.
type Speaker string

const (
	SpeakerUser  Speaker = "User"
	SpeakerAgent Speaker = "Agent"
)

// #endregion speaker

// #region action
// Action is one dialogue act. The tracker fills Round, Speaker and
// MatchObjects before appending it to the history.
type Action struct {
	Intent       string         `json:"intent"`
	InformSlots  map[string]any `json:"inform_slots"`
	RequestSlots []string       `json:"request_slots"`
	Round        int            `json:"round"`
	Speaker      Speaker        `json:"speaker,omitempty"`
	MatchObjects []MatchObject  `json:"list_match_obj"`
}

// InformKeys returns the inform slot names in ascending order.
func (a Action) InformKeys() []string {
	keys := make([]string, 0, len(a.InformSlots))
	for k := range a.InformSlots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	out := a
	if a.InformSlots != nil {
		out.InformSlots = make(map[string]any, len(a.InformSlots))
		for k, v := range a.InformSlots {
			out.InformSlots[k] = DeepCopy(v)
		}
	}
	if a.RequestSlots != nil {
		out.RequestSlots = append([]string(nil), a.RequestSlots...)
	}
	if a.MatchObjects != nil {
		out.MatchObjects = append([]MatchObject(nil), a.MatchObjects...)
	}
	return out
}

// #endregion action

// #region match-object
// MatchObject correlates one sub-offering of a record.
type MatchObject struct {
	Works     string `json:"works"`
	NamePlace string `json:"name_place"`
	Address   string `json:"address"`
	Time      string `json:"time"`
}

// Field returns the value of a mapping slot, or "" for any other slot.
func (m MatchObject) Field(slot string) string {
	switch slot {
	case SlotWorks:
		return m.Works
	case SlotNamePlace:
		return m.NamePlace
	case SlotAddress:
		return m.Address
	case SlotTime:
		return m.Time
	}
	return ""
}

// #endregion match-object

// #region records
// Record is the attribute map of one knowledge-base entry.
type Record map[string]any

// Results maps record keys to records.
type Results map[string]Record

// Keys returns record keys in ascending order. Every "first record" choice
// in the module goes through this ordering.
func (r Results) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the record with the smallest key.
func (r Results) First() (string, Record, bool) {
	if len(r) == 0 {
		return "", nil, false
	}
	key := r.Keys()[0]
	return key, r[key], true
}

// Clone deep-copies the result set.
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for k, rec := range r {
		out[k] = rec.Clone()
	}
	return out
}

// Clone deep-copies the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = DeepCopy(v)
	}
	return out
}

// Correlations decodes the record's sub-offering list. Entries that are not
// maps are skipped.
func (r Record) Correlations() []MatchObject {
	raw, ok := r[CorrelationKey]
	if !ok || raw == nil {
		return nil
	}
	var out []MatchObject
	switch list := raw.(type) {
	case []MatchObject:
		out = append(out, list...)
	case []any:
		for _, item := range list {
			if m, ok := MatchObjectFrom(item); ok {
				out = append(out, m)
			}
		}
	case []map[string]any:
		for _, item := range list {
			if m, ok := MatchObjectFrom(item); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// #endregion records

// #region aggregate
// MatchingAllKey is the aggregate entry counting records that satisfy every
// constraint at once.
const MatchingAllKey = "matching_all_constraints"

// Aggregate holds per-slot record counts from an aggregate query.
type Aggregate map[string]int

// #endregion aggregate

// #region constraints
// Constraints is a read-only view of the constraint store handed to the
// knowledge base. It never aliases tracker state.
type Constraints struct {
	Scalars map[string]any `json:"scalars"`

	// MappingActive is set once any mapping slot has been informed.
	MappingActive bool          `json:"mapping_active"`
	MappingSlot   string        `json:"mapping_slot,omitempty"`
	MappingValue  string        `json:"mapping_value,omitempty"`
	Candidates    []MatchObject `json:"candidates,omitempty"`
}

// Has reports whether slot is present in the view.
func (c Constraints) Has(slot string) bool {
	if IsMappingSlot(slot) {
		return c.MappingActive
	}
	_, ok := c.Scalars[slot]
	return ok
}

// Slots returns every present slot in ascending order.
func (c Constraints) Slots() []string {
	slots := make([]string, 0, len(c.Scalars)+len(MappingSlots))
	for k := range c.Scalars {
		slots = append(slots, k)
	}
	if c.MappingActive {
		slots = append(slots, MappingSlots[:]...)
	}
	sort.Strings(slots)
	return slots
}

// #endregion constraints
