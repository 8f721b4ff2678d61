package privacy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

func newTestEngine(t *testing.T, totalEpsilon float64) *DifferentialPrivacyEngine {
	t.Helper()

	ledger, err := NewPrivacyLedger(totalEpsilon, 1e-5)
	require.NoError(t, err)

	engine, err := NewDifferentialPrivacyEngine(ledger, NewQueryAccountant(), nil)
	require.NoError(t, err)
	return engine
}

func TestPrivateMeanSpendsBudgetUntilExhausted(t *testing.T) {
	engine := newTestEngine(t, 2.0)
	ctx := context.Background()

	ages := []float64{25, 30, 35, 40, 45, 50, 55, 60}
	bounds := Bounds{Lower: 18, Upper: 80}

	// First two queries fit within the budget
	_, err := engine.PrivateMean(ctx, ages, 0.8, bounds)
	require.NoError(t, err)
	_, err = engine.PrivateMean(ctx, ages, 0.8, bounds)
	require.NoError(t, err)
	assert.InDelta(t, 1.6, engine.Ledger().Spent(), 1e-9)

	// Third query would exceed 2.0 and must be rejected without side effects
	_, err = engine.PrivateMean(ctx, ages, 0.8, bounds)
	require.Error(t, err)
	assert.True(t, errors.IsBudgetExhausted(err))
	assert.InDelta(t, 1.6, engine.Ledger().Spent(), 1e-9)
	assert.Equal(t, 2, engine.Accountant().Len(), "rejected query must not be recorded")
}

func TestPrivateMeanResultNearTrueMean(t *testing.T) {
	// A large budget keeps the noise scale small relative to the mean
	engine := newTestEngine(t, 1000)

	data := make([]float64, 1000)
	for i := range data {
		data[i] = 40
	}

	noisy, err := engine.PrivateMean(context.Background(), data, 10, Bounds{Lower: 18, Upper: 80})
	require.NoError(t, err)

	// sensitivity = 62/1000, scale = sensitivity/10: noise is tiny
	assert.InDelta(t, 40, noisy, 1.0)
}

func TestPrivateMeanClipsOutliers(t *testing.T) {
	engine := newTestEngine(t, 1000)

	// One wild outlier; clipping bounds it to 80 before averaging
	data := []float64{40, 40, 40, 1e9}
	noisy, err := engine.PrivateMean(context.Background(), data, 100, Bounds{Lower: 18, Upper: 80})
	require.NoError(t, err)

	trueClippedMean := (40.0 + 40 + 40 + 80) / 4
	assert.InDelta(t, trueClippedMean, noisy, 2.0)
}

func TestPrivateMeanValidation(t *testing.T) {
	engine := newTestEngine(t, 1.0)
	ctx := context.Background()

	_, err := engine.PrivateMean(ctx, nil, 0.5, Bounds{Lower: 0, Upper: 1})
	assert.Error(t, err, "empty data must be rejected")

	_, err = engine.PrivateMean(ctx, []float64{1}, 0.5, Bounds{Lower: 1, Upper: 1})
	assert.Error(t, err, "degenerate bounds must be rejected")

	_, err = engine.PrivateMean(ctx, []float64{1}, 0, Bounds{Lower: 0, Upper: 1})
	assert.Error(t, err, "zero epsilon must be rejected")

	assert.Equal(t, 0.0, engine.Ledger().Spent(), "validation failures must not spend budget")
}

func TestPrivateCountRoundsAndFloors(t *testing.T) {
	engine := newTestEngine(t, 1000)
	ctx := context.Background()

	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	over5 := func(v float64) bool { return v > 5 }

	// High epsilon keeps noise well under 0.5, so rounding recovers the truth
	count, err := engine.PrivateCount(ctx, data, over5, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// An empty slice with noise can go negative; result must floor at zero
	for i := 0; i < 20; i++ {
		count, err = engine.PrivateCount(ctx, nil, over5, 0.5)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 0)
	}
}

func TestPrivateCountBudgetRejectionIsAtomic(t *testing.T) {
	engine := newTestEngine(t, 1.0)
	ctx := context.Background()

	require.NoError(t, engine.Ledger().Spend(1.0))

	_, err := engine.PrivateCount(ctx, []float64{1, 2}, func(float64) bool { return true }, 0.5)
	require.Error(t, err)
	assert.True(t, errors.IsBudgetExhausted(err))
	assert.Equal(t, 0, engine.Accountant().Len())
}

func TestPerturbGradientsClipsAndSpends(t *testing.T) {
	engine := newTestEngine(t, 10)
	ctx := context.Background()

	gradients := []float64{3, 4} // L2 norm 5
	noisy, err := engine.PerturbGradients(ctx, gradients, 1.0, 5.0)
	require.NoError(t, err)
	assert.Len(t, noisy, 2)
	assert.InDelta(t, 5.0, engine.Ledger().Spent(), 1e-9)

	records := engine.Accountant().Records()
	require.Len(t, records, 1)
	assert.Equal(t, MechanismGaussian, records[0].Mechanism)
	require.NotNil(t, records[0].Sigma)
	require.NotNil(t, records[0].Delta)
}

func TestPerturbGradientsCancelledContextSpendsNothing(t *testing.T) {
	engine := newTestEngine(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.PerturbGradients(ctx, []float64{1, 2}, 1.0, 2.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0.0, engine.Ledger().Spent(), "cancelled call must not spend budget")
	assert.Equal(t, 0, engine.Accountant().Len(), "cancelled call must not be recorded")
}

func TestClipByNorm(t *testing.T) {
	clipped := clipByNorm([]float64{3, 4}, 1.0)
	assert.InDelta(t, 0.6, clipped[0], 1e-12)
	assert.InDelta(t, 0.8, clipped[1], 1e-12)

	// Under the norm bound the vector passes through unchanged
	unchanged := clipByNorm([]float64{0.3, 0.4}, 1.0)
	assert.InDelta(t, 0.3, unchanged[0], 1e-12)
	assert.InDelta(t, 0.4, unchanged[1], 1e-12)

	zero := clipByNorm([]float64{0, 0}, 1.0)
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestAccountantRecordsEveryGrantedQuery(t *testing.T) {
	engine := newTestEngine(t, 10)
	ctx := context.Background()

	_, err := engine.PrivateMean(ctx, []float64{1, 2, 3}, 1.0, Bounds{Lower: 0, Upper: 10})
	require.NoError(t, err)
	_, err = engine.PrivateCount(ctx, []float64{1, 2, 3}, func(v float64) bool { return v > 1 }, 1.0)
	require.NoError(t, err)

	records := engine.Accountant().Records()
	require.Len(t, records, 2)
	for _, record := range records {
		assert.NotEmpty(t, record.ID)
		assert.False(t, record.Timestamp.IsZero())
		assert.Equal(t, MechanismLaplace, record.Mechanism)
	}
	assert.InDelta(t, 2.0, engine.Accountant().TotalEpsilon(), 1e-9)
}
