package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// Attempt store errors.
var (
	ErrNoActiveAttempt = errors.New("no active attempt")
	ErrResultNotFound  = errors.New("no recent result")
)

// AttemptStore keeps attempt sessions and recent results in Redis.
// attempt:{id} holds the session; a per-(student, exam) pointer names the
// live attempt. Both keys expire together.
type AttemptStore struct {
	rdb *redis.Client
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(rdb *redis.Client) *AttemptStore {
	return &AttemptStore{rdb: rdb}
}

// Save stores the session and points the (student, exam) pair at it,
// replacing whatever attempt the pointer named before.
func (s *AttemptStore) Save(ctx context.Context, sess *model.AttemptSession, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("save attempt %s: non-positive ttl %s", sess.ID, ttl)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.AttemptKey(sess.ID.String()), data, ttl)
	pipe.Set(ctx, config.CacheKey.ActiveAttemptKey(sess.ExamID.String(), sess.StudentID), sess.ID.String(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	return nil
}

// Update rewrites the session body without touching the pointer.
func (s *AttemptStore) Update(ctx context.Context, sess *model.AttemptSession, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNoActiveAttempt
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.AttemptKey(sess.ID.String()), data, ttl).Err()
}

// Active returns the live attempt of a student for an exam.
func (s *AttemptStore) Active(ctx context.Context, studentID int, examID uuid.UUID) (*model.AttemptSession, error) {
	id, err := s.rdb.Get(ctx, config.CacheKey.ActiveAttemptKey(examID.String(), studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get attempt pointer: %w", err)
	}

	data, err := s.rdb.Get(ctx, config.CacheKey.AttemptKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	var sess model.AttemptSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	if sess.StudentID != studentID || sess.ExamID != examID {
		return nil, ErrNoActiveAttempt
	}
	return &sess, nil
}

// MarkStart remembers at as the moment the student first opened the exam and
// returns the first recorded start. The marker outlives the attempt session so
// reopening an expired attempt cannot restart the clock.
func (s *AttemptStore) MarkStart(ctx context.Context, studentID int, examID uuid.UUID, at time.Time, ttl time.Duration) (time.Time, error) {
	key := config.CacheKey.AttemptStartKey(examID.String(), studentID)
	set, err := s.rdb.SetNX(ctx, key, at.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("mark attempt start: %w", err)
	}
	if set {
		return at, nil
	}
	started, err := s.StartedAt(ctx, studentID, examID)
	if errors.Is(err, ErrNoActiveAttempt) {
		// Expired between the two calls.
		return at, s.rdb.Set(ctx, key, at.UTC().Format(time.RFC3339Nano), ttl).Err()
	}
	return started, err
}

// StartedAt returns the recorded first-open time, or ErrNoActiveAttempt.
func (s *AttemptStore) StartedAt(ctx context.Context, studentID int, examID uuid.UUID) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptStartKey(examID.String(), studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNoActiveAttempt
		}
		return time.Time{}, fmt.Errorf("get attempt start: %w", err)
	}
	started, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode attempt start: %w", err)
	}
	return started, nil
}

// Discard removes the session and its pointer.
func (s *AttemptStore) Discard(ctx context.Context, sess *model.AttemptSession) error {
	return s.rdb.Del(ctx,
		config.CacheKey.AttemptKey(sess.ID.String()),
		config.CacheKey.ActiveAttemptKey(sess.ExamID.String(), sess.StudentID),
	).Err()
}

// SaveResult keeps the latest result for the result view.
func (s *AttemptStore) SaveResult(ctx context.Context, studentID int, result *model.AttemptResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.AttemptResultKey(result.ExamID.String(), studentID), data, ttl).Err()
}

// Result returns the latest result if it has not expired.
func (s *AttemptStore) Result(ctx context.Context, studentID int, examID uuid.UUID) (*model.AttemptResult, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AttemptResultKey(examID.String(), studentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	var result model.AttemptResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
