package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// AuditLog is the append-only destruction audit trail. One entry is written
// per destroyed record and consumed by external compliance reporting.
type AuditLog struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

// NewAuditLog creates an empty audit log
func NewAuditLog() *AuditLog {
	return &AuditLog{entries: make([]models.AuditEntry, 0)}
}

// Append records one destruction event
func (a *AuditLog) Append(recordID string, method models.DestructionMethod, operator string) models.AuditEntry {
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		Method:    method,
		Timestamp: time.Now().UTC(),
		Operator:  operator,
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.mu.Unlock()
	return entry
}

// Entries returns a copy of the audit trail in append order
func (a *AuditLog) Entries() []models.AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of audit entries
func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
