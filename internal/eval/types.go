package eval

// #region eval-config
// EvalConfig holds the constants an encoded state must be consistent with.
type EvalConfig struct {
	TurnScale         float32 // turn cell = round / TurnScale
	CountScale        float32 // kb_count cell = count / CountScale
	Tolerance         float32 // float comparison slack
	RequireUserIntent bool    // a non-terminal vector must carry a user intent
}

// DefaultEvalConfig matches the encoder's constants.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		TurnScale:         5.0,
		CountScale:        100.0,
		Tolerance:         1e-5,
		RequireUserIntent: true,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result. Value counts the
// offending cells, or carries the checked quantity.
type EvalMetric struct {
	Name  string
	Value float32
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of vector validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Failed returns the names of failing metrics.
func (r EvalResult) Failed() []string {
	var out []string
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m.Name)
		}
	}
	return out
}

// #endregion eval-result
