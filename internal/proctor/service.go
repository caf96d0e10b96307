package proctor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/observability"
)

// ErrInvalidEvent is returned for client events without a usable type.
var ErrInvalidEvent = errors.New("invalid proctor event")

const (
	maxEventTypeLen    = 64
	maxDescriptionLen  = 500
	backgroundDeadline = 5 * time.Second
)

// LogSink accepts log entries for durable storage.
type LogSink interface {
	Enqueue(ctx context.Context, entry model.ProctorLogEntry) error
}

// AlertPublisher forwards events to live monitors.
type AlertPublisher interface {
	Publish(ctx context.Context, ev model.ProctorLiveEvent) error
}

// Options configures a Service.
type Options struct {
	Thresholds    Thresholds
	AreaThreshold int
}

// Service runs the per-frame pipeline: decode, detect, verify, transition.
// Log writes and live publishing happen in the background and never fail
// the caller.
type Service struct {
	store     *Store
	detector  FaceDetector
	sink      LogSink
	publisher AlertPublisher
	opts      Options
	log       zerolog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewService creates a new Service. publisher may be nil.
func NewService(store *Store, detector FaceDetector, sink LogSink, publisher AlertPublisher, opts Options, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		detector:  detector,
		sink:      sink,
		publisher: publisher,
		opts:      opts,
		log:       log.With().Str("component", "proctor_service").Logger(),
		now:       time.Now,
	}
}

// ProcessFrame runs one webcam frame through detection and the student's
// state machine. Undecodable frames and detector failures are logged and
// dropped without touching the counters.
func (s *Service) ProcessFrame(ctx context.Context, studentID int, examID uuid.UUID, payload string) []Signal {
	start := time.Now()

	img, err := DecodeFrame(payload)
	if err != nil {
		observability.ProctorFrames().WithLabelValues("malformed").Inc()
		s.log.Debug().Err(err).Int("student_id", studentID).Msg("Dropping malformed frame")
		return nil
	}

	faces, err := s.verifiedFaces(img)
	observability.ProctorDetectLatency().Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProctorFrames().WithLabelValues("detector_error").Inc()
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Face detection failed")
		return nil
	}
	observability.ProctorFrames().WithLabelValues("processed").Inc()

	return s.Observe(ctx, studentID, examID, faces)
}

// Observe feeds a verified face count into the state machine and dispatches
// the resulting alerts.
func (s *Service) Observe(ctx context.Context, studentID int, examID uuid.UUID, faces int) []Signal {
	now := s.now()
	signals := s.store.Get(studentID).Observe(faces, now, s.opts.Thresholds)

	for _, sig := range signals {
		if !sig.Alerting() {
			continue
		}
		observability.ProctorAlerts().WithLabelValues(string(sig.Kind)).Inc()
		s.dispatch(
			model.ProctorLogEntry{
				StudentID:   studentID,
				ExamID:      examID,
				EventType:   string(sig.Kind),
				Description: sig.LogDescription,
				RecordedAt:  now,
			},
			sig.Severity,
			sig.Message,
		)
	}
	return signals
}

// RecordEvent logs a client-reported event such as a tab switch. It does not
// touch the frame counters.
func (s *Service) RecordEvent(ctx context.Context, studentID int, examID uuid.UUID, eventType, description string) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || len(eventType) > maxEventTypeLen {
		return ErrInvalidEvent
	}
	description = truncate(strings.TrimSpace(description), maxDescriptionLen)
	if description == "" {
		description = eventType
	}

	s.dispatch(
		model.ProctorLogEntry{
			StudentID:   studentID,
			ExamID:      examID,
			EventType:   eventType,
			Description: description,
			RecordedAt:  s.now(),
		},
		SeverityWarning,
		description,
	)
	return nil
}

// Forget drops a student's counters, e.g. after submission.
func (s *Service) Forget(studentID int) {
	s.store.Forget(studentID)
}

// Close waits for in-flight background writes.
func (s *Service) Close() {
	s.wg.Wait()
}

// verifiedFaces runs detection on the equalized grayscale frame. A panic in
// the detector is reported as an error.
func (s *Service) verifiedFaces(img image.Image) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()

	regions, err := s.detector.Detect(EqualizeHist(Grayscale(img)))
	if err != nil {
		return 0, err
	}
	return VerifiedCount(regions, s.opts.AreaThreshold), nil
}

func (s *Service) dispatch(entry model.ProctorLogEntry, severity, message string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()

		if err := s.sink.Enqueue(ctx, entry); err != nil {
			s.log.Warn().Err(err).
				Int("student_id", entry.StudentID).
				Str("event_type", entry.EventType).
				Msg("Failed to write proctor log")
		}

		if s.publisher == nil {
			return
		}
		ev := model.ProctorLiveEvent{
			StudentID:  entry.StudentID,
			ExamID:     entry.ExamID,
			EventType:  entry.EventType,
			Severity:   severity,
			Message:    message,
			OccurredAt: entry.RecordedAt,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Debug().Err(err).Str("exam_id", entry.ExamID.String()).Msg("Failed to publish live event")
		}
	}()
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
