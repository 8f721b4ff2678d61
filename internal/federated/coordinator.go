package federated

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// RoundState is the coordinator's per-round state machine position.
type RoundState string

const (
	StateSelectClients RoundState = "SELECT_CLIENTS"
	StateLocalTrain    RoundState = "LOCAL_TRAIN"
	StateAggregate     RoundState = "AGGREGATE"
	StateApply         RoundState = "APPLY"
	StateTerminal      RoundState = "TERMINAL"
)

// defaultClientTimeout bounds each round's client wait when no timeout is
// configured; a zero timeout would let one hung client stall the run forever.
const defaultClientTimeout = 60 * time.Second

// CoordinatorConfig configures a federated training run.
type CoordinatorConfig struct {
	Rounds          int              `json:"rounds"`
	SelectionSize   int              `json:"selection_size"`
	MaxRoundRetries int              `json:"max_round_retries"`
	EarlyStopDelta  float64          `json:"early_stop_delta"`
	EarlyStopRounds int              `json:"early_stop_rounds"`
	LocalTrain      LocalTrainConfig `json:"local_train"`
}

// RoundResult summarizes one completed round.
type RoundResult struct {
	Round       int           `json:"round"`
	ClientIDs   []string      `json:"client_ids"`
	AverageLoss float64       `json:"average_loss"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

// TrainingResult summarizes a completed run.
type TrainingResult struct {
	RoundsCompleted int            `json:"rounds_completed"`
	StoppedEarly    bool           `json:"stopped_early"`
	FinalParameters []float64      `json:"final_parameters"`
	Rounds          []RoundResult  `json:"rounds"`
	EarlyStop       EarlyStopState `json:"early_stop"`
}

// FederatedCoordinator orchestrates rounds of client-local training and
// server-side federated averaging. Rounds are strictly sequential: round N+1
// cannot begin before round N's aggregate has been applied. Within a round
// the selected clients train concurrently, and aggregation requires an update
// from every one of them; a non-responding client fails the whole round,
// which is retried with a freshly selected subset rather than partially
// aggregated.
type FederatedCoordinator struct {
	logger *logrus.Logger
	config CoordinatorConfig
	pool   []Client
	rng    *rand.Rand

	mu     sync.RWMutex
	global []float64
	round  int
	state  RoundState
}

// NewFederatedCoordinator creates a coordinator over a client pool and
// initial global parameters.
func NewFederatedCoordinator(config CoordinatorConfig, pool []Client, initialParams []float64, logger *logrus.Logger) (*FederatedCoordinator, error) {
	if config.Rounds < 1 {
		return nil, errors.NewInvalidParameterError("round count must be at least 1")
	}
	if config.SelectionSize < 1 || config.SelectionSize > len(pool) {
		return nil, errors.NewInvalidParameterError("selection size must be in [1, pool size]")
	}
	if len(initialParams) == 0 {
		return nil, errors.NewInvalidParameterError("initial parameters are required")
	}
	if config.MaxRoundRetries < 0 {
		return nil, errors.NewInvalidParameterError("round retry count must be non-negative")
	}
	if config.LocalTrain.Timeout <= 0 {
		config.LocalTrain.Timeout = defaultClientTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	global := make([]float64, len(initialParams))
	copy(global, initialParams)

	return &FederatedCoordinator{
		logger: logger,
		config: config,
		pool:   pool,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		global: global,
		state:  StateSelectClients,
	}, nil
}

// State returns the coordinator's current state
func (fc *FederatedCoordinator) State() RoundState {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.state
}

// GlobalParameters returns a copy of the current global parameters
func (fc *FederatedCoordinator) GlobalParameters() []float64 {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	out := make([]float64, len(fc.global))
	copy(out, fc.global)
	return out
}

// Run executes the configured number of rounds, or fewer if early stopping
// triggers. It returns the per-round history alongside the final parameters.
func (fc *FederatedCoordinator) Run(ctx context.Context) (*TrainingResult, error) {
	result := &TrainingResult{EarlyStop: NewEarlyStopState()}

	for round := 1; round <= fc.config.Rounds; round++ {
		roundResult, err := fc.runRound(ctx, round)
		if err != nil {
			fc.setState(StateTerminal)
			return nil, err
		}

		result.Rounds = append(result.Rounds, *roundResult)
		result.RoundsCompleted = round

		if fc.config.EarlyStopRounds > 0 {
			var stop bool
			result.EarlyStop, stop = result.EarlyStop.Observe(
				roundResult.AverageLoss, fc.config.EarlyStopDelta, fc.config.EarlyStopRounds)
			if stop {
				fc.logger.WithFields(logrus.Fields{
					"round":     round,
					"best_loss": result.EarlyStop.BestValue,
				}).Info("Early stopping triggered")
				result.StoppedEarly = true
				break
			}
		}
	}

	fc.setState(StateTerminal)
	result.FinalParameters = fc.GlobalParameters()
	return result, nil
}

// runRound runs one round end to end, retrying with a fresh client subset
// when a selected client fails to respond, up to MaxRoundRetries.
func (fc *FederatedCoordinator) runRound(ctx context.Context, round int) (*RoundResult, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= fc.config.MaxRoundRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fc.setState(StateSelectClients)
		selected := fc.selectClients()

		fc.setState(StateLocalTrain)
		updates, err := fc.collectUpdates(ctx, round, selected)
		if err != nil {
			lastErr = err
			fc.logger.WithError(err).WithFields(logrus.Fields{
				"round":   round,
				"attempt": attempt + 1,
			}).Warn("Round attempt failed, reselecting clients")
			continue
		}

		fc.setState(StateAggregate)
		aggregate := federatedAverage(updates, len(fc.global))

		fc.setState(StateApply)
		fc.applyAggregate(aggregate, round)

		var totalLoss float64
		ids := make([]string, len(updates))
		for i, u := range updates {
			totalLoss += u.Loss
			ids[i] = u.ClientID
		}

		return &RoundResult{
			Round:       round,
			ClientIDs:   ids,
			AverageLoss: totalLoss / float64(len(updates)),
			Attempts:    attempt + 1,
			Duration:    time.Since(start),
		}, nil
	}

	return nil, errors.WrapError(lastErr, errors.ErrorTypeFederated, errors.CodeRoundFailed,
		"round failed after exhausting retries").WithContext("round", round)
}

// selectClients draws a uniform random subset of size k from the pool,
// without replacement within the round.
func (fc *FederatedCoordinator) selectClients() []Client {
	fc.mu.Lock()
	indices := fc.rng.Perm(len(fc.pool))
	fc.mu.Unlock()

	selected := make([]Client, fc.config.SelectionSize)
	for i := 0; i < fc.config.SelectionSize; i++ {
		selected[i] = fc.pool[indices[i]]
	}
	return selected
}

// collectUpdates runs the selected clients concurrently and waits for all of
// them. Any client that errors or misses the round deadline fails the round
// with ClientNonResponsive; partial rounds are never accepted.
func (fc *FederatedCoordinator) collectUpdates(ctx context.Context, round int, selected []Client) ([]*ClientUpdate, error) {
	params := fc.GlobalParameters()

	// The constructor guarantees a positive timeout, so the wait is bounded.
	roundCtx, cancel := context.WithTimeout(ctx, fc.config.LocalTrain.Timeout)
	defer cancel()

	type outcome struct {
		clientID string
		update   *ClientUpdate
		err      error
	}

	results := make(chan outcome, len(selected))
	var wg sync.WaitGroup
	for _, client := range selected {
		wg.Add(1)
		go func(cl Client) {
			defer wg.Done()
			update, err := cl.Train(roundCtx, round, params, fc.config.LocalTrain)
			results <- outcome{clientID: cl.ID(), update: update, err: err}
		}(client)
	}
	wg.Wait()
	close(results)

	updates := make([]*ClientUpdate, 0, len(selected))
	for res := range results {
		if res.err != nil {
			if roundCtx.Err() != nil {
				return nil, errors.NewClientNonResponsiveError(res.clientID, round)
			}
			return nil, errors.WrapError(res.err, errors.ErrorTypeFederated,
				errors.CodeRoundFailed, "client training failed").WithContext("client_id", res.clientID)
		}
		if len(res.update.Deltas) != len(params) {
			return nil, errors.WrapError(errors.ErrRoundFailed, errors.ErrorTypeFederated,
				errors.CodeRoundFailed, "client update dimension mismatch").
				WithContext("client_id", res.clientID).
				WithContext("got", len(res.update.Deltas)).
				WithContext("want", len(params))
		}
		updates = append(updates, res.update)
	}

	if len(updates) != len(selected) {
		return nil, errors.NewClientNonResponsiveError("unknown", round)
	}
	return updates, nil
}

// federatedAverage computes the exact unweighted elementwise mean of the
// client updates. collectUpdates has already rejected dimension mismatches.
func federatedAverage(updates []*ClientUpdate, dim int) []float64 {
	aggregate := make([]float64, dim)
	for _, update := range updates {
		for i, d := range update.Deltas {
			aggregate[i] += d
		}
	}
	for i := range aggregate {
		aggregate[i] /= float64(len(updates))
	}
	return aggregate
}

// applyAggregate adds the aggregated update to the global parameters
func (fc *FederatedCoordinator) applyAggregate(aggregate []float64, round int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for i := range fc.global {
		fc.global[i] += aggregate[i]
	}
	fc.round = round

	fc.logger.WithFields(logrus.Fields{
		"round":      round,
		"parameters": len(fc.global),
	}).Debug("Aggregated update applied to global model")
}

func (fc *FederatedCoordinator) setState(state RoundState) {
	fc.mu.Lock()
	fc.state = state
	fc.mu.Unlock()
}
