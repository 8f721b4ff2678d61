package privacy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ShapeDescriptor describes the shape of a query's input.
type ShapeDescriptor struct {
	Kind   string `json:"kind"` // "scalar" or "series"
	Length int    `json:"length"`
}

// QueryRecord describes one privacy-consuming operation. Records are
// immutable once created.
type QueryRecord struct {
	ID          string          `json:"id"`
	Mechanism   MechanismKind   `json:"mechanism"`
	Epsilon     float64         `json:"epsilon"`
	Sensitivity float64         `json:"sensitivity"`
	Sigma       *float64        `json:"sigma,omitempty"`
	Delta       *float64        `json:"delta,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Shape       ShapeDescriptor `json:"shape"`
}

// QueryAccountant is an append-only log of every privacy-consuming
// operation. It is consumed by external audit and compliance reporting.
type QueryAccountant struct {
	mu      sync.RWMutex
	records []QueryRecord
}

// NewQueryAccountant creates an empty accountant
func NewQueryAccountant() *QueryAccountant {
	return &QueryAccountant{records: make([]QueryRecord, 0)}
}

// Append logs a query record. Missing ID and timestamp are stamped here;
// existing records are never modified or removed.
func (qa *QueryAccountant) Append(record QueryRecord) QueryRecord {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	qa.mu.Lock()
	defer qa.mu.Unlock()
	qa.records = append(qa.records, record)
	return record
}

// Records returns a copy of the log in append order
func (qa *QueryAccountant) Records() []QueryRecord {
	qa.mu.RLock()
	defer qa.mu.RUnlock()

	out := make([]QueryRecord, len(qa.records))
	copy(out, qa.records)
	return out
}

// Len returns the number of logged queries
func (qa *QueryAccountant) Len() int {
	qa.mu.RLock()
	defer qa.mu.RUnlock()
	return len(qa.records)
}

// TotalEpsilon returns the plain sum of epsilons across all logged queries
func (qa *QueryAccountant) TotalEpsilon() float64 {
	qa.mu.RLock()
	defer qa.mu.RUnlock()

	var total float64
	for _, r := range qa.records {
		total += r.Epsilon
	}
	return total
}
