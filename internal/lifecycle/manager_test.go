package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// flakyStore fails Delete a configured number of times before succeeding.
type flakyStore struct {
	*MemoryRecordStore
	failures int
}

func (s *flakyStore) Delete(ctx context.Context, id string) error {
	if s.failures > 0 {
		s.failures--
		return errors.NewStorageError(errors.CodeStorageError, "backend unavailable")
	}
	return s.MemoryRecordStore.Delete(ctx, id)
}

func newTestManager(t *testing.T, store RecordStore) *DataLifecycleManager {
	t.Helper()

	policies, err := NewRetentionPolicyStore(DefaultPolicies())
	require.NoError(t, err)

	manager, err := NewDataLifecycleManager(ManagerConfig{
		SweepInterval:         time.Hour,
		MaxDestructionRetries: 3,
	}, store, policies, NewAuditLog(), NewKeyVault(), nil)
	require.NoError(t, err)
	return manager
}

func putRecord(t *testing.T, store RecordStore, record models.DataRecord) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &record))
}

func TestSweepDestroysOnlyExpiredRecords(t *testing.T) {
	store := NewMemoryRecordStore()
	manager := newTestManager(t, store)
	ctx := context.Background()

	// Personal data retains for 90 days.
	putRecord(t, store, models.DataRecord{
		ID:             "expired",
		SubjectID:      "s1",
		Classification: models.ClassificationPersonalData,
		CreationDate:   time.Now().Add(-91 * 24 * time.Hour),
	})
	putRecord(t, store, models.DataRecord{
		ID:             "fresh",
		SubjectID:      "s2",
		Classification: models.ClassificationPersonalData,
		CreationDate:   time.Now().Add(-time.Hour),
	})

	result, err := manager.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 1, result.Destroyed)
	assert.Equal(t, 0, result.Failed)

	_, found, err := store.Get(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSweepWritesAuditEntries(t *testing.T) {
	store := NewMemoryRecordStore()
	manager := newTestManager(t, store)

	putRecord(t, store, models.DataRecord{
		ID:             "old",
		SubjectID:      "s1",
		Classification: models.ClassificationPersonalData,
		CreationDate:   time.Now().Add(-200 * 24 * time.Hour),
	})

	_, err := manager.SweepOnce(context.Background())
	require.NoError(t, err)

	entries := manager.Audit().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "old", entries[0].RecordID)
	assert.Equal(t, models.DestructionSecureOverwrite, entries[0].Method)
	assert.Equal(t, models.OperatorAutomated, entries[0].Operator)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestSweepCryptographicErasureDestroysKey(t *testing.T) {
	store := NewMemoryRecordStore()
	manager := newTestManager(t, store)
	ctx := context.Background()

	keyID, err := manager.Keys().CreateKey()
	require.NoError(t, err)

	// Special category data retains for 30 days and is crypto-erased.
	putRecord(t, store, models.DataRecord{
		ID:                "bio",
		SubjectID:         "s1",
		Classification:    models.ClassificationSpecialCategory,
		CreationDate:      time.Now().Add(-31 * 24 * time.Hour),
		ContainsBiometric: true,
		EncryptionKeyID:   keyID,
	})

	result, err := manager.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Destroyed)
	assert.False(t, manager.Keys().HasKey(keyID), "encryption key must be destroyed")
}

func TestErasureRequestLifecycle(t *testing.T) {
	store := NewMemoryRecordStore()
	manager := newTestManager(t, store)
	ctx := context.Background()

	// Three records for the subject, none of them expired.
	for _, id := range []string{"r1", "r2", "r3"} {
		putRecord(t, store, models.DataRecord{
			ID:             id,
			SubjectID:      "passenger-7",
			Classification: models.ClassificationPersonalData,
			CreationDate:   time.Now(),
		})
	}
	putRecord(t, store, models.DataRecord{
		ID:             "other",
		SubjectID:      "passenger-8",
		Classification: models.ClassificationPersonalData,
		CreationDate:   time.Now(),
	})

	request, err := manager.SubmitErasureRequest("passenger-7")
	require.NoError(t, err)
	assert.Equal(t, models.ErasureStatusSubmitted, request.Status)
	assert.NotEmpty(t, request.RequestID)

	require.NoError(t, manager.Process(ctx, request.RequestID))

	final, err := manager.GetErasureRequest(request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ErasureStatusCompleted, final.Status)
	assert.Equal(t, 3, final.RecordsDeleted)
	require.NotNil(t, final.CompletedAt)

	// Erasure overrides retention: the unexpired records are gone.
	remaining, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "other", remaining[0].ID)

	// Every destruction is attributed to the erasure request.
	for _, entry := range manager.Audit().Entries() {
		assert.Equal(t, models.OperatorErasure, entry.Operator)
	}
}

func TestErasureRequestUnknownID(t *testing.T) {
	manager := newTestManager(t, NewMemoryRecordStore())

	_, err := manager.GetErasureRequest("nope")
	assert.Error(t, err)

	err = manager.Process(context.Background(), "nope")
	assert.Error(t, err)
}

func TestErasureSubjectWithNoRecordsCompletes(t *testing.T) {
	manager := newTestManager(t, NewMemoryRecordStore())

	request, err := manager.SubmitErasureRequest("ghost")
	require.NoError(t, err)
	require.NoError(t, manager.Process(context.Background(), request.RequestID))

	final, err := manager.GetErasureRequest(request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ErasureStatusCompleted, final.Status)
	assert.Equal(t, 0, final.RecordsDeleted)
}

func TestDestructionRetriesThenSucceeds(t *testing.T) {
	// Two transient failures, then success; three retries are configured.
	store := &flakyStore{MemoryRecordStore: NewMemoryRecordStore(), failures: 2}
	manager := newTestManager(t, store)

	putRecord(t, store.MemoryRecordStore, models.DataRecord{
		ID:             "r1",
		SubjectID:      "s1",
		Classification: models.ClassificationOperationalData,
		CreationDate:   time.Now().Add(-800 * 24 * time.Hour),
	})

	result, err := manager.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Destroyed)
	assert.Empty(t, manager.OperatorQueue())
}

func TestDestructionFailureSurfacesToOperatorQueue(t *testing.T) {
	store := &flakyStore{MemoryRecordStore: NewMemoryRecordStore(), failures: 100}
	manager := newTestManager(t, store)
	ctx := context.Background()

	putRecord(t, store.MemoryRecordStore, models.DataRecord{
		ID:             "stuck",
		SubjectID:      "s1",
		Classification: models.ClassificationOperationalData,
		CreationDate:   time.Now(),
	})

	request, err := manager.SubmitErasureRequest("s1")
	require.NoError(t, err)

	err = manager.Process(ctx, request.RequestID)
	require.Error(t, err)

	final, err := manager.GetErasureRequest(request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ErasureStatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Equal(t, 0, final.RecordsDeleted)

	queue := manager.OperatorQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, "stuck", queue[0].RecordID)

	// No audit entry for a record that was never destroyed.
	assert.Equal(t, 0, manager.Audit().Len())
}

func TestErasureIsIdempotent(t *testing.T) {
	store := NewMemoryRecordStore()
	manager := newTestManager(t, store)
	ctx := context.Background()

	putRecord(t, store, models.DataRecord{
		ID:             "r1",
		SubjectID:      "s1",
		Classification: models.ClassificationPersonalData,
		CreationDate:   time.Now(),
	})

	first, err := manager.SubmitErasureRequest("s1")
	require.NoError(t, err)
	require.NoError(t, manager.Process(ctx, first.RequestID))

	// A second request for the same subject finds nothing and still completes.
	second, err := manager.SubmitErasureRequest("s1")
	require.NoError(t, err)
	require.NoError(t, manager.Process(ctx, second.RequestID))

	final, err := manager.GetErasureRequest(second.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ErasureStatusCompleted, final.Status)
	assert.Equal(t, 0, final.RecordsDeleted)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	manager := newTestManager(t, NewMemoryRecordStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.RunSweeper(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
