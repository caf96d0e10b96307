package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptKey returns the cache key holding one attempt's shuffle mapping
func (r *CacheKeyStruct) AttemptKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s", attemptID)
}

// ActiveAttemptKey returns the cache key pointing at a student's live attempt for an exam
func (r *CacheKeyStruct) ActiveAttemptKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:attempt", studentID, examID)
}

// AttemptStartKey returns the cache key remembering when a student first opened an exam
func (r *CacheKeyStruct) AttemptStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:started", studentID, examID)
}

// AttemptResultKey returns the cache key for the most recent submitted result
func (r *CacheKeyStruct) AttemptResultKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:result", studentID, examID)
}

// ExamProctorChannel returns the Redis PubSub channel carrying proctoring events for an exam
func (r *CacheKeyStruct) ExamProctorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:proctor", examID)
}

var CacheKey = NewCacheKeyStruct()
