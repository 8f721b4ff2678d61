package smpc

import (
	"context"
	"math"
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// AggregatorConfig configures a secure aggregator for one party set.
type AggregatorConfig struct {
	NumParties int `json:"num_parties"`
	Threshold  int `json:"threshold"`
	// ScaleDigits is the number of decimal digits preserved when float
	// contributions are lifted into the field.
	ScaleDigits int `json:"scale_digits"`
}

// SecureAggregator computes cross-party sums without any party learning
// another's individual contribution. Each party splits its local value into
// shares; the pointwise sum of everyone's shares is itself a sharing of the
// total, which a quorum of at least threshold parties can reconstruct.
type SecureAggregator struct {
	logger     *logrus.Logger
	scheme     *SecretSharingScheme
	numParties int
	threshold  int
	scale      float64
}

// NewSecureAggregator creates an aggregator over the default field modulus.
func NewSecureAggregator(config AggregatorConfig, logger *logrus.Logger) (*SecureAggregator, error) {
	if config.NumParties < 1 {
		return nil, errors.NewInvalidParameterError("party count must be at least 1")
	}
	if config.Threshold < 1 || config.Threshold > config.NumParties {
		return nil, errors.NewInvalidParameterError("threshold must be in [1, num_parties]")
	}
	if logger == nil {
		logger = logrus.New()
	}

	scheme, err := NewSecretSharingScheme(nil)
	if err != nil {
		return nil, err
	}

	digits := config.ScaleDigits
	if digits <= 0 {
		digits = 6
	}

	return &SecureAggregator{
		logger:     logger,
		scheme:     scheme,
		numParties: config.NumParties,
		threshold:  config.Threshold,
		scale:      math.Pow(10, float64(digits)),
	}, nil
}

// Threshold returns the reconstruction quorum size
func (sa *SecureAggregator) Threshold() int {
	return sa.threshold
}

// ShareValue lifts a party's local value into the field at fixed precision
// and splits it into one share per party.
func (sa *SecureAggregator) ShareValue(value float64) ([]Share, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.NewInvalidParameterError("value must be finite")
	}
	scaled := big.NewInt(int64(math.Round(value * sa.scale)))
	return sa.scheme.Share(scaled, sa.numParties, sa.threshold)
}

// Collector gathers one share bundle per responding party for a single
// aggregation. It is single-use: shares are consumed by reconstruction and
// discarded with the collector.
type Collector struct {
	mu       sync.Mutex
	bundles  map[string][]Share
	expected int
	arrived  chan struct{}
}

// NewCollector opens a collection window for one secure sum
func (sa *SecureAggregator) NewCollector() *Collector {
	return &Collector{
		bundles:  make(map[string][]Share),
		expected: sa.numParties,
		arrived:  make(chan struct{}, sa.numParties),
	}
}

// Submit records a party's share bundle. Each party may submit exactly once,
// and the bundle must hold one share per party.
func (c *Collector) Submit(partyID string, shares []Share) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(shares) != c.expected {
		return errors.NewInvalidParameterError("bundle must hold one share per party")
	}
	if _, dup := c.bundles[partyID]; dup {
		return errors.WrapError(errors.ErrDuplicateShare, errors.ErrorTypeAggregation,
			errors.CodeDuplicateShare, "party already submitted shares")
	}

	cloned := make([]Share, len(shares))
	for i, s := range shares {
		cloned[i] = s.Clone()
	}
	c.bundles[partyID] = cloned

	select {
	case c.arrived <- struct{}{}:
	default:
	}
	return nil
}

func (c *Collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bundles)
}

// takeBundles consumes the collected bundles, emptying the collector
func (c *Collector) takeBundles() map[string][]Share {
	c.mu.Lock()
	defer c.mu.Unlock()
	bundles := c.bundles
	c.bundles = make(map[string][]Share)
	return bundles
}

// SecureSum blocks until a quorum of at least threshold parties has submitted
// shares, then reconstructs the exact sum of their contributions. On context
// expiry before quorum it fails with InsufficientShares; the result is never
// approximated or silently degraded.
func (sa *SecureAggregator) SecureSum(ctx context.Context, c *Collector) (float64, int, error) {
	for c.count() < sa.threshold {
		select {
		case <-ctx.Done():
			got := c.count()
			if got >= sa.threshold {
				break
			}
			sa.logger.WithFields(logrus.Fields{
				"threshold": sa.threshold,
				"received":  got,
			}).Warn("Secure aggregation quorum not reached within collection window")
			return 0, 0, errors.NewInsufficientSharesError(sa.threshold, got)
		case <-c.arrived:
		}
	}

	bundles := c.takeBundles()
	participants := len(bundles)

	// Pointwise sum of the bundles is a valid sharing of the total.
	aggregated := make([]Share, 0, sa.numParties)
	modulus := sa.scheme.Modulus()
	for _, bundle := range bundles {
		if len(aggregated) == 0 {
			for _, s := range bundle {
				aggregated = append(aggregated, s.Clone())
			}
			continue
		}
		for i, s := range bundle {
			aggregated[i].Value.Add(aggregated[i].Value, s.Value)
			aggregated[i].Value.Mod(aggregated[i].Value, modulus)
		}
	}

	total, err := sa.scheme.Reconstruct(aggregated, sa.threshold)
	if err != nil {
		return 0, 0, err
	}

	lifted := sa.scheme.CenteredLift(total)
	if !lifted.IsInt64() {
		return 0, 0, errors.NewAppError(errors.ErrorTypeAggregation, errors.CodeInternalError,
			"reconstructed sum exceeds the fixed-point range")
	}
	sum := float64(lifted.Int64()) / sa.scale

	sa.logger.WithFields(logrus.Fields{
		"participants": participants,
		"threshold":    sa.threshold,
	}).Debug("Secure sum reconstructed")

	return sum, participants, nil
}

// SecureAverage divides the secure sum by the number of parties whose
// contributions reached the collector before reconstruction.
func (sa *SecureAggregator) SecureAverage(ctx context.Context, c *Collector) (float64, error) {
	sum, participants, err := sa.SecureSum(ctx, c)
	if err != nil {
		return 0, err
	}
	return sum / float64(participants), nil
}
