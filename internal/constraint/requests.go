package constraint

// #region request-tracker
// RequestTracker is the union of every slot the user requested during the
// episode, in first-request order.
type RequestTracker struct {
	slots []string
	seen  map[string]struct{}
}

// NewRequestTracker returns an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{seen: make(map[string]struct{})}
}

// Add inserts slots not seen before.
func (r *RequestTracker) Add(slots ...string) {
	for _, s := range slots {
		if _, ok := r.seen[s]; ok {
			continue
		}
		r.seen[s] = struct{}{}
		r.slots = append(r.slots, s)
	}
}

// First returns the earliest requested slot.
func (r *RequestTracker) First() (string, bool) {
	if len(r.slots) == 0 {
		return "", false
	}
	return r.slots[0], true
}

func (r *RequestTracker) Contains(slot string) bool {
	_, ok := r.seen[slot]
	return ok
}

func (r *RequestTracker) Len() int { return len(r.slots) }

// Slots returns a copy in insertion order.
func (r *RequestTracker) Slots() []string {
	return append([]string(nil), r.slots...)
}

func (r *RequestTracker) Reset() {
	r.slots = nil
	r.seen = make(map[string]struct{})
}

// #endregion request-tracker
