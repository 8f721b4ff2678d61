package privacy

import (
	"math"
	"sync"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// PrivacyLedger tracks allocated versus spent privacy budget. Composition is
// strictly sequential: the spent figure is the plain sum of every epsilon
// spent so far. Downstream audits key off this simple-sum invariant, so no
// tighter composition theorem may be substituted.
//
// The ledger is the only shared mutable state on the query path. Every
// check-and-spend pair runs as one critical section so that two concurrent
// spends can never jointly exceed the budget.
type PrivacyLedger struct {
	mu           sync.Mutex
	totalEpsilon float64
	spentEpsilon float64
	delta        float64
	allocations  map[string]float64
}

// NewPrivacyLedger creates a ledger for one engine instance. The ledger lives
// for the engine's duration; it is never reset implicitly.
func NewPrivacyLedger(totalEpsilon, delta float64) (*PrivacyLedger, error) {
	if totalEpsilon <= 0 {
		return nil, errors.NewInvalidParameterError("total epsilon must be positive")
	}
	if delta < 0 || delta >= 1 {
		return nil, errors.NewInvalidParameterError("delta must be in [0, 1)")
	}
	return &PrivacyLedger{
		totalEpsilon: totalEpsilon,
		delta:        delta,
		allocations:  make(map[string]float64),
	}, nil
}

// CanSpend reports whether epsilon fits in the remaining budget
func (l *PrivacyLedger) CanSpend(epsilon float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canSpendLocked(epsilon)
}

func (l *PrivacyLedger) canSpendLocked(epsilon float64) bool {
	return epsilon > 0 && l.spentEpsilon+epsilon <= l.totalEpsilon
}

// Spend atomically checks and deducts epsilon from the budget. A rejected
// spend leaves the ledger untouched.
func (l *PrivacyLedger) Spend(epsilon float64) error {
	return l.Allocate("", epsilon)
}

// Allocate spends epsilon and records it under a named purpose. An empty
// purpose spends without attribution.
func (l *PrivacyLedger) Allocate(purpose string, epsilon float64) error {
	if epsilon <= 0 || math.IsNaN(epsilon) {
		return errors.NewInvalidParameterError("epsilon must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canSpendLocked(epsilon) {
		return errors.NewBudgetExhaustedError(epsilon, l.totalEpsilon-l.spentEpsilon)
	}

	l.spentEpsilon += epsilon
	if purpose != "" {
		l.allocations[purpose] += epsilon
	}
	return nil
}

// Remaining returns the unspent budget, never negative
func (l *PrivacyLedger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return math.Max(0, l.totalEpsilon-l.spentEpsilon)
}

// Spent returns the plain sum of all epsilons spent so far
func (l *PrivacyLedger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spentEpsilon
}

// Total returns the total epsilon budget
func (l *PrivacyLedger) Total() float64 {
	return l.totalEpsilon
}

// Delta returns the failure probability bound configured for the engine
func (l *PrivacyLedger) Delta() float64 {
	return l.delta
}

// Allocations returns a copy of the per-purpose spend figures
func (l *PrivacyLedger) Allocations() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]float64, len(l.allocations))
	for purpose, eps := range l.allocations {
		out[purpose] = eps
	}
	return out
}

// Reset reinitializes the ledger. Only explicit reinitialization clears the
// spent figure; nothing in the query path ever resets the budget.
func (l *PrivacyLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spentEpsilon = 0
	l.allocations = make(map[string]float64)
}
