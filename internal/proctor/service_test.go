package proctor

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stretchr/testify/require"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type scriptedDetector struct {
	mu      sync.Mutex
	regions []FaceRegion
	err     error
	panics  bool
	calls   int
}

func (d *scriptedDetector) Detect(*image.Gray) ([]FaceRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.panics {
		panic("cascade exploded")
	}
	return d.regions, d.err
}

func (d *scriptedDetector) set(regions ...FaceRegion) {
	d.mu.Lock()
	d.regions = regions
	d.mu.Unlock()
}

type memorySink struct {
	mu      sync.Mutex
	entries []model.ProctorLogEntry
	err     error
}

func (s *memorySink) Enqueue(_ context.Context, e model.ProctorLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) all() []model.ProctorLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProctorLogEntry(nil), s.entries...)
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []model.ProctorLiveEvent
}

func (p *memoryPublisher) Publish(_ context.Context, ev model.ProctorLiveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// ─── Fixture ────────────────────────────────────────────────────────────────

var frontalFace = FaceRegion{Bounds: image.Rect(0, 0, 150, 150), Eyes: 2}

func newTestService(t *testing.T) (*Service, *scriptedDetector, *memorySink, *memoryPublisher) {
	t.Helper()
	det := &scriptedDetector{}
	sink := &memorySink{}
	pub := &memoryPublisher{}
	svc := NewService(NewStore(time.Hour), det, sink, pub, Options{
		Thresholds:    DefaultThresholds,
		AreaThreshold: 12000,
	}, zerolog.Nop())
	return svc, det, sink, pub
}

func framePayload(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, testImage(32, 24)))
}

// ─── ProcessFrame ───────────────────────────────────────────────────────────

func TestProcessFrame_AlertsAfterThreeEmptyFrames(t *testing.T) {
	svc, det, sink, pub := newTestService(t)
	ctx := context.Background()
	examID := uuid.New()
	frame := framePayload(t)

	det.set()
	require.Empty(t, svc.ProcessFrame(ctx, 5, examID, frame))
	require.Empty(t, svc.ProcessFrame(ctx, 5, examID, frame))
	signals := svc.ProcessFrame(ctx, 5, examID, frame)
	require.Equal(t, []SignalKind{SignalNoFace}, kinds(signals))

	svc.Close()

	entries := sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, 5, entries[0].StudentID)
	require.Equal(t, examID, entries[0].ExamID)
	require.Equal(t, model.ProctorEventNoFace, entries[0].EventType)
	require.Equal(t, "No face detected for 3 consecutive frames", entries[0].Description)

	require.Len(t, pub.events, 1)
	require.Equal(t, SeverityWarning, pub.events[0].Severity)
	require.Equal(t, signals[0].Message, pub.events[0].Message)
}

func TestForget_StartsNextExamWithCleanCounters(t *testing.T) {
	svc, det, _, _ := newTestService(t)
	ctx := context.Background()
	frame := framePayload(t)

	det.set()
	svc.ProcessFrame(ctx, 5, uuid.New(), frame)
	svc.ProcessFrame(ctx, 5, uuid.New(), frame)

	svc.Forget(5)

	// Two more empty frames would have alerted without the reset.
	next := uuid.New()
	require.Empty(t, svc.ProcessFrame(ctx, 5, next, frame))
	require.Empty(t, svc.ProcessFrame(ctx, 5, next, frame))
	require.Equal(t, 2, svc.store.Get(5).Snapshot().TotalFrames)
	svc.Close()
}

func TestProcessFrame_UnverifiedFacesDoNotCount(t *testing.T) {
	svc, det, _, _ := newTestService(t)
	ctx := context.Background()
	frame := framePayload(t)

	// A small eyeless region next to the student is a poster, not a person.
	det.set(frontalFace, FaceRegion{Bounds: image.Rect(0, 0, 40, 40)})
	for i := 0; i < 5; i++ {
		require.Empty(t, svc.ProcessFrame(ctx, 1, uuid.Nil, frame))
	}

	snap := svc.store.Get(1).Snapshot()
	require.Equal(t, 5, snap.GoodFrames)
	require.Zero(t, snap.MultipleFacesCount)
}

func TestProcessFrame_DropsMalformedFrames(t *testing.T) {
	svc, det, sink, _ := newTestService(t)

	require.Nil(t, svc.ProcessFrame(context.Background(), 1, uuid.New(), "definitely not an image"))
	svc.Close()

	require.Zero(t, det.calls)
	require.Zero(t, svc.store.Len())
	require.Empty(t, sink.all())
}

func TestProcessFrame_DetectorFailuresAreSwallowed(t *testing.T) {
	svc, det, _, _ := newTestService(t)
	frame := framePayload(t)

	det.err = errors.New("boom")
	require.Nil(t, svc.ProcessFrame(context.Background(), 1, uuid.New(), frame))

	det.err = nil
	det.panics = true
	require.NotPanics(t, func() {
		require.Nil(t, svc.ProcessFrame(context.Background(), 1, uuid.New(), frame))
	})

	require.Zero(t, svc.store.Len())
}

func TestObserve_LogFailureDoesNotBlockAlert(t *testing.T) {
	svc, _, sink, pub := newTestService(t)
	sink.err = errors.New("redis down")
	examID := uuid.New()

	svc.Observe(context.Background(), 9, examID, 2)
	signals := svc.Observe(context.Background(), 9, examID, 2)
	require.Equal(t, []SignalKind{SignalMultipleFaces}, kinds(signals))

	svc.Close()
	require.Empty(t, sink.all())
	require.Len(t, pub.events, 1)
	require.Equal(t, model.ProctorEventMultipleFaces, pub.events[0].EventType)
}

// ─── RecordEvent ────────────────────────────────────────────────────────────

func TestRecordEvent(t *testing.T) {
	svc, _, sink, _ := newTestService(t)
	ctx := context.Background()
	examID := uuid.New()

	require.ErrorIs(t, svc.RecordEvent(ctx, 3, examID, "   ", "x"), ErrInvalidEvent)
	require.ErrorIs(t, svc.RecordEvent(ctx, 3, examID, strings.Repeat("x", 65), ""), ErrInvalidEvent)

	require.NoError(t, svc.RecordEvent(ctx, 3, examID, model.ProctorEventTabSwitch, ""))
	require.NoError(t, svc.RecordEvent(ctx, 3, examID, "copy_attempt", strings.Repeat("é", 600)))
	svc.Close()

	entries := sink.all()
	require.Len(t, entries, 2)

	byType := map[string]model.ProctorLogEntry{}
	for _, e := range entries {
		byType[e.EventType] = e
	}
	require.Equal(t, model.ProctorEventTabSwitch, byType[model.ProctorEventTabSwitch].Description)
	require.Equal(t, 500, len([]rune(byType["copy_attempt"].Description)))

	// Client events never move the frame counters.
	require.Zero(t, svc.store.Len())
}

// ─── RedisPublisher ─────────────────────────────────────────────────────────

func TestRedisPublisher_PublishesOnExamChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	examID := uuid.New()
	sub := rdb.Subscribe(ctx, config.CacheKey.ExamProctorChannel(examID.String()))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb)
	require.NoError(t, pub.Publish(ctx, model.ProctorLiveEvent{
		StudentID: 4,
		ExamID:    examID,
		EventType: model.ProctorEventTabSwitch,
		Message:   "left the tab",
	}))

	select {
	case msg := <-sub.Channel():
		require.Contains(t, msg.Payload, `"event_type":"tab_switch"`)
		require.Contains(t, msg.Payload, `"student_id":4`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
