package models

import "time"

// Classification enumerates the regulatory classes a data record can carry.
type Classification string

const (
	ClassificationPersonalData    Classification = "PERSONAL_DATA"
	ClassificationSpecialCategory Classification = "SPECIAL_CATEGORY"
	ClassificationPseudonymized   Classification = "PSEUDONYMIZED_DATA"
	ClassificationOperationalData Classification = "OPERATIONAL_DATA"
)

// DestructionMethod enumerates how a record is rendered unrecoverable.
type DestructionMethod string

const (
	DestructionStandardDelete       DestructionMethod = "standard_delete"
	DestructionSecureOverwrite      DestructionMethod = "secure_overwrite"
	DestructionCryptographicErasure DestructionMethod = "cryptographic_erasure"
)

// DataRecord is a stored unit of passenger data subject to retention rules.
type DataRecord struct {
	ID                  string         `json:"id"`
	SubjectID           string         `json:"subject_id"`
	Classification      Classification `json:"classification"`
	CreationDate        time.Time      `json:"creation_date"`
	Pseudonymized       bool           `json:"pseudonymized"`
	ContainsBiometric   bool           `json:"contains_biometric"`
	ContainsHealthData  bool           `json:"contains_health_data"`
	HasDirectIdentifier bool           `json:"has_direct_identifier"`
	EncryptionKeyID     string         `json:"encryption_key_id,omitempty"`
	Payload             []byte         `json:"payload,omitempty"`
}

// RetentionPolicy maps a classification to its retention and destruction rules.
type RetentionPolicy struct {
	Classification    Classification    `json:"classification"`
	RetentionPeriod   time.Duration     `json:"retention_period"`
	DestructionMethod DestructionMethod `json:"destruction_method"`
	BackupRetention   time.Duration     `json:"backup_retention"`
}

// ErasureStatus enumerates the lifecycle of a right-to-erasure request.
type ErasureStatus string

const (
	ErasureStatusSubmitted  ErasureStatus = "submitted"
	ErasureStatusProcessing ErasureStatus = "processing"
	ErasureStatusCompleted  ErasureStatus = "completed"
	ErasureStatusFailed     ErasureStatus = "failed"
)

// ErasureRequest tracks a right-to-erasure request for one data subject.
type ErasureRequest struct {
	RequestID      string        `json:"request_id"`
	SubjectID      string        `json:"subject_id"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	Status         ErasureStatus `json:"status"`
	RecordsDeleted int           `json:"records_deleted"`
	Error          string        `json:"error,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// AuditEntry records one destruction event. Entries are append-only.
type AuditEntry struct {
	ID        string            `json:"id"`
	RecordID  string            `json:"record_id"`
	Method    DestructionMethod `json:"method"`
	Timestamp time.Time         `json:"timestamp"`
	Operator  string            `json:"operator"`
}

// Audit operator values.
const (
	OperatorAutomated = "automated"
	OperatorErasure   = "erasure_request"
)
