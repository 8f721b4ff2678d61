package federated

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprachakra/AeroFusionXR-sub002/internal/privacy"
)

func newSiteEngine(t *testing.T, totalEpsilon float64) *privacy.DifferentialPrivacyEngine {
	t.Helper()

	ledger, err := privacy.NewPrivacyLedger(totalEpsilon, 1e-5)
	require.NoError(t, err)
	engine, err := privacy.NewDifferentialPrivacyEngine(ledger, privacy.NewQueryAccountant(), nil)
	require.NoError(t, err)
	return engine
}

func TestSiteClientTrainSpendsSiteBudget(t *testing.T) {
	engine := newSiteEngine(t, 10)

	client, err := NewSiteClient("site-0", engine,
		[][]float64{{1, 0}, {0, 1}, {1, 1}},
		[]float64{2, 3, 5})
	require.NoError(t, err)

	cfg := LocalTrainConfig{
		Epochs:       3,
		LearningRate: 0.1,
		Epsilon:      1.0,
		ClippingNorm: 1.0,
	}

	update, err := client.Train(context.Background(), 1, []float64{0, 0}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "site-0", update.ClientID)
	assert.Equal(t, 1, update.Round)
	assert.Len(t, update.Deltas, 2)
	assert.InDelta(t, 1.0, engine.Ledger().Spent(), 1e-9, "one round spends one epsilon")

	// The perturbed update is logged for audit.
	assert.Equal(t, 1, engine.Accountant().Len())
}

func TestSiteClientTrainFailsWhenBudgetExhausted(t *testing.T) {
	engine := newSiteEngine(t, 1.0)
	require.NoError(t, engine.Ledger().Spend(1.0))

	client, err := NewSiteClient("site-0", engine, [][]float64{{1}}, []float64{1})
	require.NoError(t, err)

	_, err = client.Train(context.Background(), 1, []float64{0}, LocalTrainConfig{
		Epochs:       1,
		LearningRate: 0.1,
		Epsilon:      0.5,
		ClippingNorm: 1.0,
	})
	assert.Error(t, err, "an exhausted site ledger must block the update")
}

func TestSiteClientValidation(t *testing.T) {
	engine := newSiteEngine(t, 1.0)

	_, err := NewSiteClient("", engine, [][]float64{{1}}, []float64{1})
	assert.Error(t, err)

	_, err = NewSiteClient("site-0", nil, [][]float64{{1}}, []float64{1})
	assert.Error(t, err)

	_, err = NewSiteClient("site-0", engine, [][]float64{{1}}, []float64{1, 2})
	assert.Error(t, err, "misaligned features and targets must be rejected")
}

func TestSiteClientHonorsContext(t *testing.T) {
	engine := newSiteEngine(t, 10)
	client, err := NewSiteClient("site-0", engine, [][]float64{{1}}, []float64{1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Train(ctx, 1, []float64{0}, LocalTrainConfig{
		Epochs:       100,
		LearningRate: 0.1,
		Epsilon:      0.5,
		ClippingNorm: 1.0,
	})
	assert.Error(t, err)
}
