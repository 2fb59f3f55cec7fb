package eval

import (
	"fmt"
	"math"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/features"
)

// #region eval-harness
// EvalHarness validates encoded state vectors against their layout.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks vec against layout. The all-zero vector is the terminal state
// and passes without further checks.
func (h *EvalHarness) Run(layout features.Layout, vec []float32) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	record := func(m EvalMetric, reason string) {
		metrics = append(metrics, m)
		if !m.Pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Length
	record(EvalMetric{Name: "length", Value: float32(len(vec)), Pass: len(vec) == layout.Size},
		fmt.Sprintf("length %d, layout size %d", len(vec), layout.Size))
	if len(vec) != layout.Size {
		return finish(metrics, failReasons)
	}

	if isZero(vec) {
		metrics = append(metrics, EvalMetric{Name: "terminal", Value: 1, Pass: true})
		return finish(metrics, failReasons)
	}

	// 2. Intent one-hots
	userBits := countOnes(features.Slice(vec, layout.UserIntent))
	userPass := userBits == 1 || (!h.config.RequireUserIntent && userBits == 0)
	record(EvalMetric{Name: "user_intent_onehot", Value: float32(userBits), Pass: userPass},
		fmt.Sprintf("user intent has %d bits set", userBits))
	agentBits := countOnes(features.Slice(vec, layout.AgentIntent))
	record(EvalMetric{Name: "agent_intent_onehot", Value: float32(agentBits), Pass: agentBits <= 1},
		fmt.Sprintf("agent intent has %d bits set", agentBits))

	// 3. Binary blocks
	for _, b := range layout.Blocks() {
		switch b.Name {
		case "turn", "kb_count":
			continue
		}
		bad := nonBinary(features.Slice(vec, b.Range))
		record(EvalMetric{Name: b.Name + "_binary", Value: float32(bad), Pass: bad == 0},
			fmt.Sprintf("%s has %d non-binary cells", b.Name, bad))
	}

	// 4. Turn scalar against the turn one-hot
	oneHot := features.Slice(vec, layout.TurnOneHot)
	turnBits := countOnes(oneHot)
	turnPass := turnBits == 1
	if turnPass {
		round := indexOfOne(oneHot) + 1
		want := float32(round) / h.config.TurnScale
		turnPass = near(vec[layout.Turn[0]], want, h.config.Tolerance)
	}
	record(EvalMetric{Name: "turn_consistent", Value: vec[layout.Turn[0]], Pass: turnPass},
		fmt.Sprintf("turn scalar %.4f disagrees with one-hot (%d bits)", vec[layout.Turn[0]], turnBits))

	// 5. Counts non-negative and agreeing with the binary block
	counts := features.Slice(vec, layout.KBCount)
	bins := features.Slice(vec, layout.KBBinary)
	bad := 0
	for i, c := range counts {
		if c < 0 || (c > 0) != (bins[i] == 1) {
			bad++
		}
	}
	record(EvalMetric{Name: "kb_count_consistent", Value: float32(bad), Pass: bad == 0},
		fmt.Sprintf("%d kb count cells disagree with kb binary", bad))

	// 6. record_slots has no cell for the extra aggregate entry
	last := vec[layout.RecordSlots[1]-1]
	record(EvalMetric{Name: "record_slots_tail", Value: last, Pass: last == 0},
		fmt.Sprintf("record_slots tail cell is %.1f", last))

	return finish(metrics, failReasons)
}

func finish(metrics []EvalMetric, failReasons []string) EvalResult {
	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}
	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func countOnes(v []float32) int {
	n := 0
	for _, x := range v {
		if x == 1 {
			n++
		}
	}
	return n
}

func indexOfOne(v []float32) int {
	for i, x := range v {
		if x == 1 {
			return i
		}
	}
	return -1
}

func nonBinary(v []float32) int {
	n := 0
	for _, x := range v {
		if x != 0 && x != 1 {
			n++
		}
	}
	return n
}

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

// #endregion helpers
