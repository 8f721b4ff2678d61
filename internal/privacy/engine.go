package privacy

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// Bounds clamps query inputs to a known range so sensitivity stays bounded.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// DifferentialPrivacyEngine composes the ledger, noise mechanisms and query
// accountant into private aggregate primitives. One ledger instance is shared
// per process and passed in explicitly; the engine never creates hidden
// process-wide state.
type DifferentialPrivacyEngine struct {
	logger     *logrus.Logger
	ledger     *PrivacyLedger
	accountant *QueryAccountant
	laplace    *LaplaceMechanism
	gaussian   *GaussianMechanism
	metrics    QueryMetrics
}

// QueryMetrics receives one event per private query outcome.
type QueryMetrics interface {
	RecordPrivateQuery(query, status string)
}

// NewDifferentialPrivacyEngine wires an engine around an existing ledger and
// accountant.
func NewDifferentialPrivacyEngine(ledger *PrivacyLedger, accountant *QueryAccountant, logger *logrus.Logger) (*DifferentialPrivacyEngine, error) {
	if ledger == nil {
		return nil, errors.NewInvalidParameterError("ledger is required")
	}
	if accountant == nil {
		accountant = NewQueryAccountant()
	}
	if logger == nil {
		logger = logrus.New()
	}

	delta := ledger.Delta()
	if delta == 0 {
		delta = 1e-5
	}
	gaussian, err := NewGaussianMechanism(nil, delta)
	if err != nil {
		return nil, err
	}

	return &DifferentialPrivacyEngine{
		logger:     logger,
		ledger:     ledger,
		accountant: accountant,
		laplace:    NewLaplaceMechanism(nil),
		gaussian:   gaussian,
	}, nil
}

// SetMetrics attaches an optional query metrics sink
func (dpe *DifferentialPrivacyEngine) SetMetrics(m QueryMetrics) {
	dpe.metrics = m
}

func (dpe *DifferentialPrivacyEngine) recordQuery(query, status string) {
	if dpe.metrics != nil {
		dpe.metrics.RecordPrivateQuery(query, status)
	}
}

// Ledger returns the shared ledger handle
func (dpe *DifferentialPrivacyEngine) Ledger() *PrivacyLedger {
	return dpe.ledger
}

// Accountant returns the append-only query log
func (dpe *DifferentialPrivacyEngine) Accountant() *QueryAccountant {
	return dpe.accountant
}

// PrivateMean clips every value to bounds, computes the true mean, and adds
// Laplace noise at sensitivity (upper-lower)/n. Epsilon is spent before any
// noise is drawn; if the ledger rejects the spend the call is an atomic
// no-op: no noise is computed and no query record is written.
func (dpe *DifferentialPrivacyEngine) PrivateMean(ctx context.Context, data []float64, epsilon float64, bounds Bounds) (float64, error) {
	if len(data) == 0 {
		return 0, errors.NewInvalidParameterError("input data cannot be empty")
	}
	if bounds.Upper <= bounds.Lower {
		return 0, errors.NewInvalidParameterError("bounds upper must exceed lower")
	}
	if err := validateNoiseParams(0, epsilon); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := dpe.ledger.Allocate("private_mean", epsilon); err != nil {
		dpe.logger.WithFields(logrus.Fields{
			"epsilon":   epsilon,
			"remaining": dpe.ledger.Remaining(),
		}).Warn("Private mean rejected: budget exhausted")
		dpe.recordQuery("private_mean", "rejected")
		return 0, err
	}

	clipped := make([]float64, len(data))
	for i, v := range data {
		clipped[i] = math.Min(math.Max(v, bounds.Lower), bounds.Upper)
	}

	sensitivity := (bounds.Upper - bounds.Lower) / float64(len(data))
	trueMean := stat.Mean(clipped, nil)

	noisyMean, err := dpe.laplace.AddNoise(trueMean, sensitivity, epsilon)
	if err != nil {
		return 0, err
	}

	dpe.accountant.Append(QueryRecord{
		Mechanism:   MechanismLaplace,
		Epsilon:     epsilon,
		Sensitivity: sensitivity,
		Shape:       ShapeDescriptor{Kind: "series", Length: len(data)},
	})

	dpe.logger.WithFields(logrus.Fields{
		"epsilon":     epsilon,
		"sensitivity": sensitivity,
		"data_points": len(data),
		"remaining":   dpe.ledger.Remaining(),
	}).Debug("Private mean computed")

	dpe.recordQuery("private_mean", "ok")
	return noisyMean, nil
}

// PrivateCount counts the values matching predicate and adds Laplace noise at
// the fixed count sensitivity of 1. The result is rounded and floored at
// zero. Budget rejection is an atomic no-op, as with PrivateMean.
func (dpe *DifferentialPrivacyEngine) PrivateCount(ctx context.Context, data []float64, predicate func(float64) bool, epsilon float64) (int, error) {
	if predicate == nil {
		return 0, errors.NewInvalidParameterError("predicate is required")
	}
	if err := validateNoiseParams(0, epsilon); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := dpe.ledger.Allocate("private_count", epsilon); err != nil {
		dpe.recordQuery("private_count", "rejected")
		return 0, err
	}

	var count float64
	for _, v := range data {
		if predicate(v) {
			count++
		}
	}

	const sensitivity = 1.0
	noisy, err := dpe.laplace.AddNoise(count, sensitivity, epsilon)
	if err != nil {
		return 0, err
	}

	dpe.accountant.Append(QueryRecord{
		Mechanism:   MechanismLaplace,
		Epsilon:     epsilon,
		Sensitivity: sensitivity,
		Shape:       ShapeDescriptor{Kind: "series", Length: len(data)},
	})

	rounded := int(math.Round(noisy))
	if rounded < 0 {
		rounded = 0
	}
	dpe.recordQuery("private_count", "ok")
	return rounded, nil
}

// PerturbGradients adds Gaussian noise to a gradient vector at the given
// clipping norm sensitivity, spending epsilon from the shared ledger. Used
// by federated clients before their updates leave the site.
func (dpe *DifferentialPrivacyEngine) PerturbGradients(ctx context.Context, gradients []float64, clippingNorm, epsilon float64) ([]float64, error) {
	if clippingNorm <= 0 {
		return nil, errors.NewInvalidParameterError("clipping norm must be positive")
	}
	if err := validateNoiseParams(clippingNorm, epsilon); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := dpe.ledger.Allocate("gradient_perturbation", epsilon); err != nil {
		dpe.recordQuery("gradient_perturbation", "rejected")
		return nil, err
	}

	clipped := clipByNorm(gradients, clippingNorm)
	noisy, err := dpe.gaussian.AddNoiseToSeries(ctx, clipped, clippingNorm, epsilon)
	if err != nil {
		return nil, err
	}

	sigma := dpe.gaussian.Sigma(clippingNorm, epsilon)
	delta := dpe.gaussian.Delta()
	dpe.accountant.Append(QueryRecord{
		Mechanism:   MechanismGaussian,
		Epsilon:     epsilon,
		Sensitivity: clippingNorm,
		Sigma:       &sigma,
		Delta:       &delta,
		Shape:       ShapeDescriptor{Kind: "series", Length: len(gradients)},
	})

	dpe.recordQuery("gradient_perturbation", "ok")
	return noisy, nil
}

// clipByNorm scales the vector down so its L2 norm does not exceed maxNorm
func clipByNorm(v []float64, maxNorm float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)

	out := make([]float64, len(v))
	if norm <= maxNorm || norm == 0 {
		copy(out, v)
		return out
	}
	factor := maxNorm / norm
	for i, x := range v {
		out[i] = x * factor
	}
	return out
}
