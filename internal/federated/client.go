package federated

import (
	"context"
	"time"

	"github.com/suprachakra/AeroFusionXR-sub002/internal/privacy"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// ClientUpdate carries one client's perturbed parameter deltas for one round.
// Updates are owned by the coordinator for the duration of the round and
// discarded after aggregation.
type ClientUpdate struct {
	ClientID string    `json:"client_id"`
	Deltas   []float64 `json:"deltas"`
	Loss     float64   `json:"loss"`
	Round    int       `json:"round"`
}

// LocalTrainConfig is the per-round training configuration broadcast to
// selected clients.
type LocalTrainConfig struct {
	Epochs       int           `json:"epochs"`
	LearningRate float64       `json:"learning_rate"`
	Epsilon      float64       `json:"epsilon"`
	ClippingNorm float64       `json:"clipping_norm"`
	Timeout      time.Duration `json:"timeout"`
}

// Client is one participating site. Train receives the current global
// parameters, trains locally, and returns a perturbed update; the raw
// gradients never leave the site.
type Client interface {
	ID() string
	Train(ctx context.Context, round int, params []float64, cfg LocalTrainConfig) (*ClientUpdate, error)
}

// SiteClient trains a linear model on site-local observations and perturbs
// its gradient deltas through the site's differential privacy engine before
// returning them.
type SiteClient struct {
	id       string
	engine   *privacy.DifferentialPrivacyEngine
	features [][]float64
	targets  []float64
}

// NewSiteClient creates a client over site-local training data. Every feature
// row must match the model dimension; targets pairs with features rowwise.
func NewSiteClient(id string, engine *privacy.DifferentialPrivacyEngine, features [][]float64, targets []float64) (*SiteClient, error) {
	if id == "" {
		return nil, errors.NewInvalidParameterError("client id is required")
	}
	if engine == nil {
		return nil, errors.NewInvalidParameterError("privacy engine is required")
	}
	if len(features) == 0 || len(features) != len(targets) {
		return nil, errors.NewInvalidParameterError("features and targets must be non-empty and aligned")
	}
	return &SiteClient{
		id:       id,
		engine:   engine,
		features: features,
		targets:  targets,
	}, nil
}

// ID returns the client identifier
func (c *SiteClient) ID() string {
	return c.id
}

// Train runs local SGD epochs on the site data and returns the noised
// parameter delta.
func (c *SiteClient) Train(ctx context.Context, round int, params []float64, cfg LocalTrainConfig) (*ClientUpdate, error) {
	local := make([]float64, len(params))
	copy(local, params)

	var loss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gradients, epochLoss := c.gradientStep(local)
		for i := range local {
			local[i] -= cfg.LearningRate * gradients[i]
		}
		loss = epochLoss
	}

	deltas := make([]float64, len(params))
	for i := range deltas {
		deltas[i] = local[i] - params[i]
	}

	// Perturb before the update leaves the site. Spends cfg.Epsilon from
	// this site's ledger.
	noised, err := c.engine.PerturbGradients(ctx, deltas, cfg.ClippingNorm, cfg.Epsilon)
	if err != nil {
		return nil, err
	}

	return &ClientUpdate{
		ClientID: c.id,
		Deltas:   noised,
		Loss:     loss,
		Round:    round,
	}, nil
}

// gradientStep computes the mean-squared-error gradient of the linear model
// over the site data.
func (c *SiteClient) gradientStep(params []float64) ([]float64, float64) {
	gradients := make([]float64, len(params))
	var loss float64

	n := float64(len(c.features))
	for row, x := range c.features {
		var pred float64
		for i, p := range params {
			if i < len(x) {
				pred += p * x[i]
			}
		}
		residual := pred - c.targets[row]
		loss += residual * residual / n
		for i := range gradients {
			if i < len(x) {
				gradients[i] += 2 * residual * x[i] / n
			}
		}
	}
	return gradients, loss
}
