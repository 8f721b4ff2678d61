package lifecycle

import (
	"sync"
	"time"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// RetentionPolicyStore maps data classifications to retention duration and
// destruction method. The table is supplied by an external policy store at
// startup and can be swapped atomically when policies change.
type RetentionPolicyStore struct {
	mu       sync.RWMutex
	policies map[models.Classification]models.RetentionPolicy
}

// NewRetentionPolicyStore creates a store from a policy table
func NewRetentionPolicyStore(policies []models.RetentionPolicy) (*RetentionPolicyStore, error) {
	store := &RetentionPolicyStore{
		policies: make(map[models.Classification]models.RetentionPolicy),
	}
	for _, p := range policies {
		if err := validatePolicy(p); err != nil {
			return nil, err
		}
		store.policies[p.Classification] = p
	}
	return store, nil
}

// DefaultPolicies returns the baseline retention table used when no external
// table is configured.
func DefaultPolicies() []models.RetentionPolicy {
	const day = 24 * time.Hour
	return []models.RetentionPolicy{
		{
			Classification:    models.ClassificationSpecialCategory,
			RetentionPeriod:   30 * day,
			DestructionMethod: models.DestructionCryptographicErasure,
			BackupRetention:   7 * day,
		},
		{
			Classification:    models.ClassificationPersonalData,
			RetentionPeriod:   90 * day,
			DestructionMethod: models.DestructionSecureOverwrite,
			BackupRetention:   30 * day,
		},
		{
			Classification:    models.ClassificationPseudonymized,
			RetentionPeriod:   365 * day,
			DestructionMethod: models.DestructionStandardDelete,
			BackupRetention:   90 * day,
		},
		{
			Classification:    models.ClassificationOperationalData,
			RetentionPeriod:   730 * day,
			DestructionMethod: models.DestructionStandardDelete,
			BackupRetention:   180 * day,
		},
	}
}

func validatePolicy(p models.RetentionPolicy) error {
	if p.Classification == "" {
		return errors.NewConfigurationError("retention policy classification is required")
	}
	if p.RetentionPeriod <= 0 {
		return errors.NewConfigurationError("retention period must be positive")
	}
	switch p.DestructionMethod {
	case models.DestructionStandardDelete, models.DestructionSecureOverwrite, models.DestructionCryptographicErasure:
	default:
		return errors.NewConfigurationError("unknown destruction method " + string(p.DestructionMethod))
	}
	return nil
}

// PolicyFor returns the policy mapped to a classification
func (s *RetentionPolicyStore) PolicyFor(c models.Classification) (models.RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[c]
	if !ok {
		return models.RetentionPolicy{}, errors.WrapError(errors.ErrPolicyNotFound,
			errors.ErrorTypeLifecycle, errors.CodePolicyNotFound,
			"no retention policy for classification "+string(c))
	}
	return policy, nil
}

// Replace atomically swaps in a new policy table
func (s *RetentionPolicyStore) Replace(policies []models.RetentionPolicy) error {
	next := make(map[models.Classification]models.RetentionPolicy, len(policies))
	for _, p := range policies {
		if err := validatePolicy(p); err != nil {
			return err
		}
		next[p.Classification] = p
	}

	s.mu.Lock()
	s.policies = next
	s.mu.Unlock()
	return nil
}

// Classify assigns a record's classification, first match wins: biometric or
// health content, then unpseudonymized direct identifiers, then an explicit
// pseudonymization mark, otherwise operational data.
func Classify(record *models.DataRecord) models.Classification {
	switch {
	case record.ContainsBiometric || record.ContainsHealthData:
		return models.ClassificationSpecialCategory
	case record.HasDirectIdentifier && !record.Pseudonymized:
		return models.ClassificationPersonalData
	case record.Pseudonymized:
		return models.ClassificationPseudonymized
	default:
		return models.ClassificationOperationalData
	}
}

// DeletionDate computes when a record expires: creation date plus the
// retention period of its classification, exactly.
func (s *RetentionPolicyStore) DeletionDate(record *models.DataRecord) (time.Time, error) {
	classification := record.Classification
	if classification == "" {
		classification = Classify(record)
	}
	policy, err := s.PolicyFor(classification)
	if err != nil {
		return time.Time{}, err
	}
	return record.CreationDate.Add(policy.RetentionPeriod), nil
}
