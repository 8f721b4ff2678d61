package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// RedisConfig holds configuration for the Redis-backed record store.
type RedisConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
}

// RedisRecordStore is a RecordStore backed by Redis, for deployments where
// several services at one site share the record inventory. Records are stored
// as JSON under per-record keys, with a per-subject index set.
type RedisRecordStore struct {
	config *RedisConfig
	client redis.UniversalClient
	logger *logrus.Logger
}

// NewRedisRecordStore creates a Redis-backed store. Connect must be called
// before use.
func NewRedisRecordStore(config *RedisConfig, logger *logrus.Logger) (*RedisRecordStore, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "redis address is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "lifecycle"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisRecordStore{config: config, logger: logger}, nil
}

// Connect establishes the Redis connection and verifies it with a ping
func (s *RedisRecordStore) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:         s.config.Addr,
		Password:     s.config.Password,
		DB:           s.config.DB,
		DialTimeout:  s.config.DialTimeout,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	})

	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to connect to redis")
	}

	s.logger.WithField("addr", s.config.Addr).Info("Connected to Redis record store")
	return nil
}

// Close releases the Redis connection
func (s *RedisRecordStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *RedisRecordStore) recordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", s.config.KeyPrefix, id)
}

func (s *RedisRecordStore) subjectKey(subjectID string) string {
	return fmt.Sprintf("%s:subject:%s", s.config.KeyPrefix, subjectID)
}

func (s *RedisRecordStore) indexKey() string {
	return fmt.Sprintf("%s:records", s.config.KeyPrefix)
}

// Put stores the record and indexes it by subject
func (s *RedisRecordStore) Put(ctx context.Context, record *models.DataRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to marshal record")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), record.ID)
	if record.SubjectID != "" {
		pipe.SAdd(ctx, s.subjectKey(record.SubjectID), record.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to store record")
	}
	return nil
}

// Get fetches a record by id, with a presence flag
func (s *RedisRecordStore) Get(ctx context.Context, id string) (*models.DataRecord, bool, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read record")
	}

	var record models.DataRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to unmarshal record")
	}
	return &record, true, nil
}

// List fetches every indexed record
func (s *RedisRecordStore) List(ctx context.Context) ([]*models.DataRecord, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to list record ids")
	}
	return s.fetchAll(ctx, ids)
}

// FindBySubject fetches every record indexed under a data subject
func (s *RedisRecordStore) FindBySubject(ctx context.Context, subjectID string) ([]*models.DataRecord, error) {
	ids, err := s.client.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to list subject record ids")
	}
	return s.fetchAll(ctx, ids)
}

func (s *RedisRecordStore) fetchAll(ctx context.Context, ids []string) ([]*models.DataRecord, error) {
	records := make([]*models.DataRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// Overwrite replaces the stored payload in place; absent records are a no-op
func (s *RedisRecordStore) Overwrite(ctx context.Context, id string, payload []byte) error {
	record, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return err
	}
	record.Payload = payload

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to marshal record")
	}
	if err := s.client.Set(ctx, s.recordKey(id), data, 0).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to overwrite record")
	}
	return nil
}

// Delete removes the record and its index entries; absent records are a
// no-op success
func (s *RedisRecordStore) Delete(ctx context.Context, id string) error {
	record, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if ok && record.SubjectID != "" {
		pipe.SRem(ctx, s.subjectKey(record.SubjectID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to delete record")
	}
	return nil
}
