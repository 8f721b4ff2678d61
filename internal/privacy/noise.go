package privacy

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// MechanismKind identifies a noise distribution used for differential privacy.
type MechanismKind string

const (
	MechanismLaplace  MechanismKind = "laplace"
	MechanismGaussian MechanismKind = "gaussian"
)

// NoiseMechanism is the interface shared by the calibrated noise mechanisms.
// Mechanisms are pure: they never touch the privacy ledger. Budget accounting
// is the caller's responsibility.
type NoiseMechanism interface {
	Kind() MechanismKind
	AddNoise(value, sensitivity, epsilon float64) (float64, error)
	AddNoiseToSeries(ctx context.Context, data []float64, sensitivity, epsilon float64) ([]float64, error)
}

// LaplaceMechanism adds zero-mean Laplace noise with scale sensitivity/epsilon,
// giving pure epsilon-differential privacy.
type LaplaceMechanism struct {
	mu         sync.Mutex
	randSource *rand.Rand
}

// NewLaplaceMechanism creates a Laplace mechanism. A nil randSource gets a
// time-seeded default; tests pass a fixed source for reproducibility.
func NewLaplaceMechanism(randSource *rand.Rand) *LaplaceMechanism {
	if randSource == nil {
		randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &LaplaceMechanism{randSource: randSource}
}

// Kind returns the mechanism kind
func (lm *LaplaceMechanism) Kind() MechanismKind {
	return MechanismLaplace
}

// Scale returns the Laplace scale parameter b = sensitivity / epsilon
func (lm *LaplaceMechanism) Scale(sensitivity, epsilon float64) float64 {
	return sensitivity / epsilon
}

// AddNoise adds calibrated Laplace noise to a single value
func (lm *LaplaceMechanism) AddNoise(value, sensitivity, epsilon float64) (float64, error) {
	if err := validateNoiseParams(sensitivity, epsilon); err != nil {
		return 0, err
	}
	return value + lm.sampleLaplace(lm.Scale(sensitivity, epsilon)), nil
}

// AddNoiseToSeries adds independent Laplace noise to every element
func (lm *LaplaceMechanism) AddNoiseToSeries(ctx context.Context, data []float64, sensitivity, epsilon float64) ([]float64, error) {
	if err := validateNoiseParams(sensitivity, epsilon); err != nil {
		return nil, err
	}

	scale := lm.Scale(sensitivity, epsilon)
	result := make([]float64, len(data))
	for i, value := range data {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		result[i] = value + lm.sampleLaplace(scale)
	}
	return result, nil
}

func (lm *LaplaceMechanism) sampleLaplace(scale float64) float64 {
	// Inverse transform sampling on u ~ Uniform(0,1)
	lm.mu.Lock()
	u := lm.randSource.Float64()
	lm.mu.Unlock()

	if u < 0.5 {
		return scale * math.Log(2*u)
	}
	return -scale * math.Log(2*(1-u))
}

// GaussianMechanism adds zero-mean normal noise with
// sigma = sqrt(2*ln(1.25/delta)) * sensitivity / epsilon, giving
// (epsilon, delta)-differential privacy.
type GaussianMechanism struct {
	mu         sync.Mutex
	randSource *rand.Rand
	delta      float64
}

// NewGaussianMechanism creates a Gaussian mechanism for a fixed delta.
func NewGaussianMechanism(randSource *rand.Rand, delta float64) (*GaussianMechanism, error) {
	if delta <= 0 || delta >= 1 {
		return nil, errors.NewInvalidParameterError("delta must be in (0, 1)")
	}
	if randSource == nil {
		randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GaussianMechanism{randSource: randSource, delta: delta}, nil
}

// Kind returns the mechanism kind
func (gm *GaussianMechanism) Kind() MechanismKind {
	return MechanismGaussian
}

// Delta returns the failure probability bound of the mechanism
func (gm *GaussianMechanism) Delta() float64 {
	return gm.delta
}

// Sigma returns the noise standard deviation calibrated to (epsilon, delta)
func (gm *GaussianMechanism) Sigma(sensitivity, epsilon float64) float64 {
	return math.Sqrt(2*math.Log(1.25/gm.delta)) * sensitivity / epsilon
}

// AddNoise adds calibrated Gaussian noise to a single value
func (gm *GaussianMechanism) AddNoise(value, sensitivity, epsilon float64) (float64, error) {
	if err := validateNoiseParams(sensitivity, epsilon); err != nil {
		return 0, err
	}
	return value + gm.sampleNormal()*gm.Sigma(sensitivity, epsilon), nil
}

// AddNoiseToSeries adds independent Gaussian noise to every element
func (gm *GaussianMechanism) AddNoiseToSeries(ctx context.Context, data []float64, sensitivity, epsilon float64) ([]float64, error) {
	if err := validateNoiseParams(sensitivity, epsilon); err != nil {
		return nil, err
	}

	sigma := gm.Sigma(sensitivity, epsilon)
	result := make([]float64, len(data))
	for i, value := range data {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		result[i] = value + gm.sampleNormal()*sigma
	}
	return result, nil
}

func (gm *GaussianMechanism) sampleNormal() float64 {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.randSource.NormFloat64()
}

func validateNoiseParams(sensitivity, epsilon float64) error {
	if epsilon <= 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return errors.NewInvalidParameterError("epsilon must be positive and finite")
	}
	if sensitivity < 0 || math.IsNaN(sensitivity) || math.IsInf(sensitivity, 0) {
		return errors.NewInvalidParameterError("sensitivity must be non-negative and finite")
	}
	return nil
}
