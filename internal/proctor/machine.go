// Package proctor turns per-frame face detection results into debounced
// proctoring alerts.
package proctor

import (
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// SignalKind names what a Signal reports.
type SignalKind string

const (
	SignalNoFace        SignalKind = model.ProctorEventNoFace
	SignalMultipleFaces SignalKind = model.ProctorEventMultipleFaces
	SignalCompliance    SignalKind = "compliance"
)

// Severity levels understood by the client.
const (
	SeverityWarning = "warning"
	SeverityDanger  = "danger"
	SeveritySuccess = "success"
)

// Thresholds tune the state machine.
type Thresholds struct {
	NoFace            int
	MultipleFaces     int
	Cooldown          time.Duration
	ComplianceEvery   int
	CompliancePercent int
}

// DefaultThresholds are the production values.
var DefaultThresholds = Thresholds{
	NoFace:            3,
	MultipleFaces:     2,
	Cooldown:          10 * time.Second,
	ComplianceEvery:   50,
	CompliancePercent: 90,
}

// ThresholdsFromConfig builds Thresholds, falling back to the defaults for
// non-positive values.
func ThresholdsFromConfig(cfg config.ProctorConfig) Thresholds {
	t := DefaultThresholds
	if cfg.NoFaceThreshold > 0 {
		t.NoFace = cfg.NoFaceThreshold
	}
	if cfg.MultipleFacesThreshold > 0 {
		t.MultipleFaces = cfg.MultipleFacesThreshold
	}
	if cfg.AlertCooldown > 0 {
		t.Cooldown = cfg.AlertCooldown
	}
	if cfg.ComplianceEvery > 0 {
		t.ComplianceEvery = cfg.ComplianceEvery
	}
	if cfg.CompliancePercent > 0 {
		t.CompliancePercent = cfg.CompliancePercent
	}
	return t
}

// Signal is an outcome of one frame transition that the client must see.
// Alerting signals also carry a log description.
type Signal struct {
	Kind           SignalKind
	Severity       string
	Message        string
	LogDescription string
	Faces          int
}

// Alerting reports whether the signal is an alert rather than a notice.
func (s Signal) Alerting() bool {
	return s.Kind != SignalCompliance
}

// State is one student's proctoring counters. A zero State is ready to use.
type State struct {
	mu sync.Mutex

	NoFaceCount        int
	MultipleFacesCount int
	LastNoFaceAlert    time.Time
	LastMultipleAlert  time.Time
	TotalFrames        int
	GoodFrames         int

	lastSeen time.Time
}

// Observe applies one frame's verified face count and returns the signals
// it produced, if any.
func (s *State) Observe(faces int, now time.Time, t Thresholds) []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
	var out []Signal

	switch {
	case faces == 0:
		s.NoFaceCount++
		s.MultipleFacesCount = 0
		if s.NoFaceCount >= t.NoFace && cooledDown(s.LastNoFaceAlert, now, t.Cooldown) {
			s.LastNoFaceAlert = now
			out = append(out, Signal{
				Kind:           SignalNoFace,
				Severity:       SeverityWarning,
				Message:        "Please ensure your face is visible in the camera!",
				LogDescription: fmt.Sprintf("No face detected for %d consecutive frames", s.NoFaceCount),
			})
		}
	case faces > 1:
		s.MultipleFacesCount++
		s.NoFaceCount = 0
		if s.MultipleFacesCount >= t.MultipleFaces && cooledDown(s.LastMultipleAlert, now, t.Cooldown) {
			s.LastMultipleAlert = now
			out = append(out, Signal{
				Kind:           SignalMultipleFaces,
				Severity:       SeverityDanger,
				Message:        fmt.Sprintf("Multiple faces detected (%d)! Only you should be visible.", faces),
				LogDescription: fmt.Sprintf("%d faces detected for %d consecutive frames", faces, s.MultipleFacesCount),
				Faces:          faces,
			})
		}
	default:
		s.NoFaceCount = 0
		s.MultipleFacesCount = 0
		s.GoodFrames++
	}

	s.TotalFrames++
	if t.ComplianceEvery > 0 && s.TotalFrames%t.ComplianceEvery == 0 &&
		s.GoodFrames*100 >= t.CompliancePercent*s.TotalFrames {
		rate := float64(s.GoodFrames) / float64(s.TotalFrames) * 100
		out = append(out, Signal{
			Kind:     SignalCompliance,
			Severity: SeveritySuccess,
			Message:  fmt.Sprintf("Good compliance: %.0f%%", rate),
		})
	}

	return out
}

// Snapshot returns a copy of the counters.
func (s *State) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		NoFaceCount:        s.NoFaceCount,
		MultipleFacesCount: s.MultipleFacesCount,
		LastNoFaceAlert:    s.LastNoFaceAlert,
		LastMultipleAlert:  s.LastMultipleAlert,
		TotalFrames:        s.TotalFrames,
		GoodFrames:         s.GoodFrames,
	}
}

// Counters is a point-in-time copy of a State.
type Counters struct {
	NoFaceCount        int
	MultipleFacesCount int
	LastNoFaceAlert    time.Time
	LastMultipleAlert  time.Time
	TotalFrames        int
	GoodFrames         int
}

func (s *State) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// cooledDown treats a zero last-alert time as never alerted.
func cooledDown(last, now time.Time, cooldown time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= cooldown
}
