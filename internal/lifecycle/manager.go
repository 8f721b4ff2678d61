package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// ManagerConfig configures the data lifecycle manager.
type ManagerConfig struct {
	SweepInterval         time.Duration `json:"sweep_interval"`
	MaxDestructionRetries int           `json:"max_destruction_retries"`
	RetryBackoff          time.Duration `json:"retry_backoff"`
}

// FailedDestruction is a destruction that exhausted its retries and awaits
// manual intervention.
type FailedDestruction struct {
	RecordID string                   `json:"record_id"`
	Method   models.DestructionMethod `json:"method"`
	Error    string                   `json:"error"`
	FailedAt time.Time                `json:"failed_at"`
}

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Examined  int           `json:"examined"`
	Destroyed int           `json:"destroyed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleMetrics receives lifecycle events. Implemented by the prometheus
// metrics package; a nil sink disables reporting.
type LifecycleMetrics interface {
	RecordSweep(d time.Duration)
	RecordDestruction(method, operator string)
	SetOperatorQueueDepth(depth int)
}

// DataLifecycleManager runs the periodic retention sweep and the
// request-driven right-to-erasure workflow. Destruction is idempotent, so the
// two paths may operate on the same records concurrently without harm.
type DataLifecycleManager struct {
	logger   *logrus.Logger
	config   ManagerConfig
	store    RecordStore
	policies *RetentionPolicyStore
	audit    *AuditLog
	keys     *KeyVault
	metrics  LifecycleMetrics

	mu            sync.RWMutex
	requests      map[string]*models.ErasureRequest
	operatorQueue []FailedDestruction
}

// NewDataLifecycleManager wires a lifecycle manager
func NewDataLifecycleManager(config ManagerConfig, store RecordStore, policies *RetentionPolicyStore, audit *AuditLog, keys *KeyVault, logger *logrus.Logger) (*DataLifecycleManager, error) {
	if store == nil {
		return nil, errors.NewInvalidParameterError("record store is required")
	}
	if policies == nil {
		return nil, errors.NewInvalidParameterError("retention policy store is required")
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 24 * time.Hour
	}
	if config.MaxDestructionRetries <= 0 {
		config.MaxDestructionRetries = 3
	}
	if audit == nil {
		audit = NewAuditLog()
	}
	if keys == nil {
		keys = NewKeyVault()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &DataLifecycleManager{
		logger:   logger,
		config:   config,
		store:    store,
		policies: policies,
		audit:    audit,
		keys:     keys,
		requests: make(map[string]*models.ErasureRequest),
	}, nil
}

// SetMetrics installs the metrics sink
func (m *DataLifecycleManager) SetMetrics(metrics LifecycleMetrics) {
	m.metrics = metrics
}

// Audit returns the destruction audit log
func (m *DataLifecycleManager) Audit() *AuditLog {
	return m.audit
}

// Keys returns the vault used for cryptographic erasure
func (m *DataLifecycleManager) Keys() *KeyVault {
	return m.keys
}

// RunSweeper runs the retention sweep on its configured cadence until the
// context is cancelled. Shutdown is orderly: an in-flight sweep finishes
// before the loop exits.
func (m *DataLifecycleManager) RunSweeper(ctx context.Context) {
	m.logger.WithField("interval", m.config.SweepInterval).Info("Retention sweeper started")

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Retention sweeper stopping")
			return
		case <-ticker.C:
			if _, err := m.SweepOnce(ctx); err != nil {
				m.logger.WithError(err).Error("Retention sweep failed")
			}
		}
	}
}

// SweepOnce locates every record whose deletion date has passed and applies
// the destruction method mapped to its classification, writing one audit
// entry per destroyed record.
func (m *DataLifecycleManager) SweepOnce(ctx context.Context) (*SweepResult, error) {
	start := time.Now()

	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Examined: len(records)}
	now := time.Now()

	for _, record := range records {
		deletionDate, err := m.policies.DeletionDate(record)
		if err != nil {
			m.logger.WithError(err).WithField("record_id", record.ID).Warn("Skipping record without policy")
			continue
		}
		if !deletionDate.Before(now) {
			continue
		}

		policy, err := m.policies.PolicyFor(classificationOf(record))
		if err != nil {
			continue
		}

		if err := m.destroyWithRetry(ctx, record, policy.DestructionMethod, models.OperatorAutomated); err != nil {
			result.Failed++
			continue
		}
		result.Destroyed++
	}

	result.Duration = time.Since(start)
	if m.metrics != nil {
		m.metrics.RecordSweep(result.Duration)
	}
	m.logger.WithFields(logrus.Fields{
		"examined":  result.Examined,
		"destroyed": result.Destroyed,
		"failed":    result.Failed,
		"duration":  result.Duration,
	}).Info("Retention sweep completed")

	return result, nil
}

// SubmitErasureRequest opens a right-to-erasure request for a data subject.
// The request starts in status submitted; Process drives it to completion.
func (m *DataLifecycleManager) SubmitErasureRequest(subjectID string) (*models.ErasureRequest, error) {
	if subjectID == "" {
		return nil, errors.NewInvalidParameterError("subject id is required")
	}

	request := &models.ErasureRequest{
		RequestID:   uuid.NewString(),
		SubjectID:   subjectID,
		SubmittedAt: time.Now().UTC(),
		Status:      models.ErasureStatusSubmitted,
	}

	m.mu.Lock()
	m.requests[request.RequestID] = request
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"request_id": request.RequestID,
		"subject_id": subjectID,
	}).Info("Erasure request submitted")

	clone := *request
	return &clone, nil
}

// GetErasureRequest returns the current state of an erasure request
func (m *DataLifecycleManager) GetErasureRequest(requestID string) (*models.ErasureRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, ok := m.requests[requestID]
	if !ok {
		return nil, errors.WrapError(errors.ErrRequestNotFound, errors.ErrorTypeLifecycle,
			errors.CodeRequestNotFound, "unknown erasure request "+requestID)
	}
	clone := *request
	return &clone, nil
}

// Process drives an erasure request to completion: it locates every record
// for the subject and destroys each one regardless of its natural retention
// date, since erasure overrides retention. After bounded retries a failure
// is captured on the request and surfaced for manual handling; requests are
// never retried indefinitely.
func (m *DataLifecycleManager) Process(ctx context.Context, requestID string) error {
	m.mu.Lock()
	request, ok := m.requests[requestID]
	if !ok {
		m.mu.Unlock()
		return errors.WrapError(errors.ErrRequestNotFound, errors.ErrorTypeLifecycle,
			errors.CodeRequestNotFound, "unknown erasure request "+requestID)
	}
	request.Status = models.ErasureStatusProcessing
	subjectID := request.SubjectID
	m.mu.Unlock()

	records, err := m.store.FindBySubject(ctx, subjectID)
	if err != nil {
		m.failRequest(requestID, err)
		return err
	}

	deleted := 0
	var firstErr error
	for _, record := range records {
		policy, perr := m.policies.PolicyFor(classificationOf(record))
		method := models.DestructionSecureOverwrite
		if perr == nil {
			method = policy.DestructionMethod
		}

		if derr := m.destroyWithRetry(ctx, record, method, models.OperatorErasure); derr != nil {
			if firstErr == nil {
				firstErr = derr
			}
			continue
		}
		deleted++
	}

	if firstErr != nil {
		m.mu.Lock()
		request.Status = models.ErasureStatusFailed
		request.RecordsDeleted = deleted
		request.Error = firstErr.Error()
		m.mu.Unlock()

		m.logger.WithError(firstErr).WithFields(logrus.Fields{
			"request_id": requestID,
			"deleted":    deleted,
		}).Error("Erasure request failed")
		return firstErr
	}

	now := time.Now().UTC()
	m.mu.Lock()
	request.Status = models.ErasureStatusCompleted
	request.RecordsDeleted = deleted
	request.CompletedAt = &now
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": subjectID,
		"deleted":    deleted,
	}).Info("Erasure request completed")
	return nil
}

func (m *DataLifecycleManager) failRequest(requestID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request, ok := m.requests[requestID]; ok {
		request.Status = models.ErasureStatusFailed
		request.Error = err.Error()
	}
}

// OperatorQueue returns the destructions awaiting manual intervention
func (m *DataLifecycleManager) OperatorQueue() []FailedDestruction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FailedDestruction, len(m.operatorQueue))
	copy(out, m.operatorQueue)
	return out
}

// destroyWithRetry applies the destruction method with bounded retries, then
// writes the audit entry. A record that exhausts retries lands on the
// operator queue; it is never retried forever.
func (m *DataLifecycleManager) destroyWithRetry(ctx context.Context, record *models.DataRecord, method models.DestructionMethod, operator string) error {
	var lastErr error
	for attempt := 0; attempt < m.config.MaxDestructionRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 && m.config.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.config.RetryBackoff):
			}
		}

		if err := m.destroy(ctx, record, method); err != nil {
			lastErr = err
			m.logger.WithError(err).WithFields(logrus.Fields{
				"record_id": record.ID,
				"attempt":   attempt + 1,
			}).Warn("Record destruction attempt failed")
			continue
		}

		m.audit.Append(record.ID, method, operator)
		if m.metrics != nil {
			m.metrics.RecordDestruction(string(method), operator)
		}
		return nil
	}

	failure := FailedDestruction{
		RecordID: record.ID,
		Method:   method,
		Error:    fmt.Sprintf("%v", lastErr),
		FailedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.operatorQueue = append(m.operatorQueue, failure)
	depth := len(m.operatorQueue)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetOperatorQueueDepth(depth)
	}
	return errors.NewDestructionFailedError(record.ID, lastErr)
}

// destroy applies one destruction method. Deleting an absent record is a
// no-op success.
func (m *DataLifecycleManager) destroy(ctx context.Context, record *models.DataRecord, method models.DestructionMethod) error {
	switch method {
	case models.DestructionSecureOverwrite:
		zeroed := make([]byte, len(record.Payload))
		if err := m.store.Overwrite(ctx, record.ID, zeroed); err != nil {
			return err
		}
		return m.store.Delete(ctx, record.ID)
	case models.DestructionCryptographicErasure:
		if record.EncryptionKeyID != "" {
			m.keys.DestroyKey(record.EncryptionKeyID)
		}
		return m.store.Delete(ctx, record.ID)
	default: // standard_delete
		return m.store.Delete(ctx, record.ID)
	}
}

func classificationOf(record *models.DataRecord) models.Classification {
	if record.Classification != "" {
		return record.Classification
	}
	return Classify(record)
}
