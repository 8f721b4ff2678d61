package privacy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

func TestNewPrivacyLedgerValidation(t *testing.T) {
	_, err := NewPrivacyLedger(0, 1e-5)
	assert.Error(t, err)

	_, err = NewPrivacyLedger(-1, 1e-5)
	assert.Error(t, err)

	ledger, err := NewPrivacyLedger(2.0, 1e-5)
	require.NoError(t, err)
	assert.Equal(t, 2.0, ledger.Total())
	assert.Equal(t, 0.0, ledger.Spent())
	assert.Equal(t, 2.0, ledger.Remaining())
}

func TestLedgerSpendAccumulates(t *testing.T) {
	ledger, err := NewPrivacyLedger(2.0, 1e-5)
	require.NoError(t, err)

	require.NoError(t, ledger.Spend(0.75))
	require.NoError(t, ledger.Spend(0.75))
	assert.InDelta(t, 1.5, ledger.Spent(), 1e-12)
	assert.InDelta(t, 0.5, ledger.Remaining(), 1e-12)
}

func TestLedgerRejectsOverspend(t *testing.T) {
	ledger, err := NewPrivacyLedger(2.0, 1e-5)
	require.NoError(t, err)

	require.NoError(t, ledger.Spend(0.75))
	require.NoError(t, ledger.Spend(0.75))

	err = ledger.Spend(0.75)
	require.Error(t, err)
	assert.True(t, errors.IsBudgetExhausted(err))

	// Rejection leaves the ledger untouched
	assert.InDelta(t, 1.5, ledger.Spent(), 1e-12)
	assert.InDelta(t, 0.5, ledger.Remaining(), 1e-12)

	// A smaller spend still fits
	assert.NoError(t, ledger.Spend(0.5))
	assert.InDelta(t, 0.0, ledger.Remaining(), 1e-12)
}

func TestLedgerSpendExactRemaining(t *testing.T) {
	ledger, err := NewPrivacyLedger(1.0, 1e-5)
	require.NoError(t, err)

	assert.NoError(t, ledger.Spend(1.0))
	assert.Error(t, ledger.Spend(0.0001))
}

func TestLedgerRejectsInvalidSpend(t *testing.T) {
	ledger, err := NewPrivacyLedger(1.0, 1e-5)
	require.NoError(t, err)

	assert.Error(t, ledger.Spend(0))
	assert.Error(t, ledger.Spend(-0.5))
	assert.Equal(t, 0.0, ledger.Spent())
}

func TestLedgerConcurrentSpendNeverOverspends(t *testing.T) {
	ledger, err := NewPrivacyLedger(10.0, 1e-5)
	require.NoError(t, err)

	const (
		workers = 50
		spends  = 10
		epsilon = 0.05
	)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < spends; j++ {
				if err := ledger.Spend(epsilon); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 50*10*0.05 = 25 requested against a budget of 10
	assert.LessOrEqual(t, ledger.Spent(), ledger.Total()+1e-9)
	assert.InDelta(t, float64(granted)*epsilon, ledger.Spent(), 1e-9)
}

func TestLedgerAllocationsByPurpose(t *testing.T) {
	ledger, err := NewPrivacyLedger(5.0, 1e-5)
	require.NoError(t, err)

	require.NoError(t, ledger.Allocate("private_mean", 1.0))
	require.NoError(t, ledger.Allocate("private_mean", 0.5))
	require.NoError(t, ledger.Allocate("private_count", 0.25))

	allocations := ledger.Allocations()
	assert.InDelta(t, 1.5, allocations["private_mean"], 1e-12)
	assert.InDelta(t, 0.25, allocations["private_count"], 1e-12)
	assert.InDelta(t, 1.75, ledger.Spent(), 1e-12)
}

func TestLedgerResetIsExplicit(t *testing.T) {
	ledger, err := NewPrivacyLedger(1.0, 1e-5)
	require.NoError(t, err)

	require.NoError(t, ledger.Spend(1.0))
	assert.False(t, ledger.CanSpend(0.1))

	ledger.Reset()
	assert.Equal(t, 0.0, ledger.Spent())
	assert.True(t, ledger.CanSpend(1.0))
}
