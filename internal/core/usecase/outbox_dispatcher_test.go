package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
)

type stubOutboxRepo struct {
	mu         sync.Mutex
	pending    []domain.OutboxEvent
	dispatched []int64
	failed     []int64
	dead       []int64
}

func (s *stubOutboxRepo) FetchPending(context.Context, int) ([]domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.pending
	s.pending = nil
	return events, nil
}

func (s *stubOutboxRepo) MarkDispatched(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = append(s.dispatched, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id int64, _ int, _ string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubOutboxRepo) MarkDead(_ context.Context, id int64, _ int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, id)
	return nil
}

type stubPublisher struct {
	err    error
	topics []string
}

func (p *stubPublisher) Publish(_ context.Context, topic string, _ domain.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func pendingEvent(id int64, attempts int) domain.OutboxEvent {
	payload, _ := json.Marshal(domain.EventEnvelope{EventID: "evt", EventType: "rule.updated", TenantID: "tenant-a"})
	return domain.OutboxEvent{ID: id, Topic: "rules", PayloadJSON: payload, Status: "pending", Attempts: attempts}
}

func TestDispatchBatchMarksDispatched(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 0), pendingEvent(2, 0)}}
	pub := &stubPublisher{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.dispatched) != 2 {
		t.Fatalf("expected 2 dispatched, got %d", len(repo.dispatched))
	}
	if metrics := d.Metrics(); metrics.DispatchSuccessTotal != 2 {
		t.Fatalf("expected 2 successes, got %+v", metrics)
	}
}

func TestDispatchBatchMarksFailedOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 0)}}
	pub := &stubPublisher{err: errors.New("receiver down")}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.failed) != 1 || len(repo.dead) != 0 {
		t.Fatalf("expected 1 failed, 0 dead, got %d/%d", len(repo.failed), len(repo.dead))
	}
}

func TestDispatchBatchDeadLettersAfterMaxRetry(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 4)}}
	pub := &stubPublisher{err: errors.New("receiver down")}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.dead) != 1 {
		t.Fatalf("expected dead letter, got failed=%d dead=%d", len(repo.failed), len(repo.dead))
	}
	if metrics := d.Metrics(); metrics.DispatchDeadTotal != 1 {
		t.Fatalf("expected 1 dead, got %+v", metrics)
	}
}

func TestDispatchBatchUndecodablePayload(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{{ID: 7, Topic: "rules", PayloadJSON: json.RawMessage(`{broken`), Status: "pending"}}}
	d := NewOutboxDispatcher(repo, &stubPublisher{}, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected failure mark for broken payload, got %d", len(repo.failed))
	}
}

func TestBackoffDuration(t *testing.T) {
	if d := backoffDuration(1); d != time.Second {
		t.Fatalf("attempt 1: got %v", d)
	}
	if d := backoffDuration(3); d != 9*time.Second {
		t.Fatalf("attempt 3: got %v", d)
	}
	if d := backoffDuration(100); d != 5*time.Minute {
		t.Fatalf("attempt 100: expected cap, got %v", d)
	}
}

func TestDispatcherStartClose(t *testing.T) {
	repo := &stubOutboxRepo{}
	d := NewOutboxDispatcher(repo, &stubPublisher{}, 10*time.Millisecond, 10)

	d.Start(context.Background())
	d.Start(context.Background()) // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
