package federated

import "math"

// EarlyStopState is the explicit early-stopping record threaded between
// rounds: the best loss seen so far and how many rounds have passed without
// improvement. It is passed and returned by value rather than captured in a
// closure so callers can persist or inspect it.
type EarlyStopState struct {
	BestValue float64 `json:"best_value"`
	Patience  int     `json:"patience"`
}

// NewEarlyStopState starts with no observations
func NewEarlyStopState() EarlyStopState {
	return EarlyStopState{BestValue: math.Inf(1)}
}

// Observe folds one round's loss into the state. It returns the updated
// state and whether training should stop: true once patienceLimit rounds
// pass without at least minDelta improvement.
func (s EarlyStopState) Observe(value, minDelta float64, patienceLimit int) (EarlyStopState, bool) {
	if value < s.BestValue-minDelta {
		return EarlyStopState{BestValue: value, Patience: 0}, false
	}
	next := EarlyStopState{BestValue: s.BestValue, Patience: s.Patience + 1}
	return next, next.Patience >= patienceLimit
}
