package privacy

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaplaceMechanismRejectsInvalidParams(t *testing.T) {
	lm := NewLaplaceMechanism(rand.New(rand.NewSource(1)))

	_, err := lm.AddNoise(1.0, 1.0, 0)
	assert.Error(t, err, "zero epsilon must be rejected")

	_, err = lm.AddNoise(1.0, 1.0, -0.5)
	assert.Error(t, err, "negative epsilon must be rejected")

	_, err = lm.AddNoise(1.0, 1.0, math.NaN())
	assert.Error(t, err)

	_, err = lm.AddNoise(1.0, 1.0, math.Inf(1))
	assert.Error(t, err)

	_, err = lm.AddNoise(1.0, -1.0, 1.0)
	assert.Error(t, err, "negative sensitivity must be rejected")
}

func TestLaplaceScale(t *testing.T) {
	lm := NewLaplaceMechanism(nil)

	assert.InDelta(t, 2.0, lm.Scale(1.0, 0.5), 1e-12)
	assert.InDelta(t, 0.1, lm.Scale(0.1, 1.0), 1e-12)
}

func TestLaplaceNoiseEmpiricalMoments(t *testing.T) {
	lm := NewLaplaceMechanism(rand.New(rand.NewSource(7)))

	const (
		n           = 200000
		sensitivity = 1.0
		epsilon     = 0.5
	)
	scale := lm.Scale(sensitivity, epsilon)
	wantVariance := 2 * scale * scale

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		noisy, err := lm.AddNoise(0, sensitivity, epsilon)
		require.NoError(t, err)
		sum += noisy
		sumSq += noisy * noisy
	}

	mean := sum / n
	variance := sumSq/n - mean*mean

	assert.InDelta(t, 0.0, mean, 0.05, "Laplace noise should be zero-mean")
	assert.InDelta(t, wantVariance, variance, wantVariance*0.05, "variance should be 2*scale^2")
}

func TestGaussianMechanismValidatesDelta(t *testing.T) {
	_, err := NewGaussianMechanism(nil, 0)
	assert.Error(t, err)

	_, err = NewGaussianMechanism(nil, 1)
	assert.Error(t, err)

	gm, err := NewGaussianMechanism(nil, 1e-5)
	require.NoError(t, err)
	assert.Equal(t, 1e-5, gm.Delta())
}

func TestGaussianSigmaCalibration(t *testing.T) {
	gm, err := NewGaussianMechanism(nil, 1e-5)
	require.NoError(t, err)

	want := math.Sqrt(2*math.Log(1.25/1e-5)) * 1.0 / 0.5
	assert.InDelta(t, want, gm.Sigma(1.0, 0.5), 1e-12)
}

func TestGaussianNoiseEmpiricalSigma(t *testing.T) {
	gm, err := NewGaussianMechanism(rand.New(rand.NewSource(11)), 1e-5)
	require.NoError(t, err)

	const (
		n           = 200000
		sensitivity = 1.0
		epsilon     = 1.0
	)
	sigma := gm.Sigma(sensitivity, epsilon)

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		noisy, err := gm.AddNoise(0, sensitivity, epsilon)
		require.NoError(t, err)
		sum += noisy
		sumSq += noisy * noisy
	}

	mean := sum / n
	variance := sumSq/n - mean*mean

	assert.InDelta(t, 0.0, mean, sigma*0.02)
	assert.InDelta(t, sigma*sigma, variance, sigma*sigma*0.05)
}

func TestAddNoiseToSeriesHonorsContext(t *testing.T) {
	lm := NewLaplaceMechanism(rand.New(rand.NewSource(3)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lm.AddNoiseToSeries(ctx, []float64{1, 2, 3}, 1.0, 1.0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAddNoiseToSeriesLength(t *testing.T) {
	gm, err := NewGaussianMechanism(rand.New(rand.NewSource(5)), 1e-5)
	require.NoError(t, err)

	data := []float64{1, 2, 3, 4, 5}
	noisy, err := gm.AddNoiseToSeries(context.Background(), data, 1.0, 1.0)
	require.NoError(t, err)
	assert.Len(t, noisy, len(data))
}
