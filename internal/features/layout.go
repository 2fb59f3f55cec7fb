package features

// #region layout
// Layout names the [lo, hi) ranges of the encoded state vector. It is fully
// determined by the intent count, slot count and max round.
type Layout struct {
	UserIntent   [2]int `json:"user_intent"`
	UserInform   [2]int `json:"user_inform"`
	UserRequest  [2]int `json:"user_request"`
	AgentIntent  [2]int `json:"agent_intent"`
	AgentInform  [2]int `json:"agent_inform"`
	AgentRequest [2]int `json:"agent_request"`
	Constraints  [2]int `json:"constraints"`
	Turn         [2]int `json:"turn"`
	TurnOneHot   [2]int `json:"turn_onehot"`
	KBBinary     [2]int `json:"kb_binary"`
	KBCount      [2]int `json:"kb_count"`
	RecordSlots  [2]int `json:"record_slots"`
	Size         int    `json:"size"`
}

// NewLayout lays blocks out in encoding order.
func NewLayout(numIntents, numSlots, maxRound int) Layout {
	var l Layout
	off := 0
	next := func(n int) [2]int {
		r := [2]int{off, off + n}
		off += n
		return r
	}
	l.UserIntent = next(numIntents)
	l.UserInform = next(numSlots)
	l.UserRequest = next(numSlots)
	l.AgentIntent = next(numIntents)
	l.AgentInform = next(numSlots)
	l.AgentRequest = next(numSlots)
	l.Constraints = next(numSlots)
	l.Turn = next(1)
	l.TurnOneHot = next(maxRound)
	l.KBBinary = next(numSlots + 1)
	l.KBCount = next(numSlots + 1)
	l.RecordSlots = next(numSlots + 1)
	l.Size = off
	return l
}

// Block is a named range of the vector.
type Block struct {
	Name  string
	Range [2]int
}

// Blocks returns every block in encoding order.
func (l Layout) Blocks() []Block {
	return []Block{
		{"user_intent", l.UserIntent},
		{"user_inform", l.UserInform},
		{"user_request", l.UserRequest},
		{"agent_intent", l.AgentIntent},
		{"agent_inform", l.AgentInform},
		{"agent_request", l.AgentRequest},
		{"constraints", l.Constraints},
		{"turn", l.Turn},
		{"turn_onehot", l.TurnOneHot},
		{"kb_binary", l.KBBinary},
		{"kb_count", l.KBCount},
		{"record_slots", l.RecordSlots},
	}
}

// Slice returns the part of vec covered by r.
func Slice(vec []float32, r [2]int) []float32 {
	return vec[r[0]:r[1]]
}

// #endregion layout
