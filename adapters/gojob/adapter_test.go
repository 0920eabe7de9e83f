package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-crebain/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := NewDeliveryPurgeMessage(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 24*time.Hour)

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != JobIDDeliveryPurge {
		t.Fatalf("expected job id %q, got %q", JobIDDeliveryPurge, roundTrip.JobID)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != "drop" {
		t.Fatalf("expected drop dedup policy, got %q", roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["retention_seconds"] != int64(86400) {
		t.Fatalf("expected retention parameter to survive mapping, got %v", roundTrip.Parameters)
	}
}

func TestMaintenanceMessages_SameWindowSharesIdempotencyKey(t *testing.T) {
	window := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := NewReplayLedgerPurgeMessage(window)
	second := NewReplayLedgerPurgeMessage(window)
	if first.IdempotencyKey != second.IdempotencyKey {
		t.Fatalf("expected same-window jobs to dedupe, got %q vs %q", first.IdempotencyKey, second.IdempotencyKey)
	}
	later := NewReplayLedgerPurgeMessage(window.Add(time.Hour))
	if later.IdempotencyKey == first.IdempotencyKey {
		t.Fatalf("expected a new window to get a new key")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := NewRateLimitSweepMessage(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDRateLimitSweep {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != JobIDRateLimitSweep {
		t.Fatalf("expected mapped client message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{
			JobID: JobIDReplayLedgerPurge,
		},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestMaintenanceDispatcher_RoutesJobs(t *testing.T) {
	ctx := context.Background()
	ledger := &stubReplayPurger{purged: 3}
	deliveries := &stubDeliveryPurger{purged: 2}
	dispatcher := NewMaintenanceDispatcher(ledger, deliveries, nil, nil)
	if dispatcher.Logger == nil {
		t.Fatalf("expected dispatcher to resolve a maintenance logger")
	}

	if err := dispatcher.Dispatch(ctx, NewReplayLedgerPurgeMessage(time.Now())); err != nil {
		t.Fatalf("dispatch replay purge: %v", err)
	}
	if !ledger.called {
		t.Fatalf("expected replay ledger purge to run")
	}

	if err := dispatcher.Dispatch(ctx, NewDeliveryPurgeMessage(time.Now(), 36*time.Hour)); err != nil {
		t.Fatalf("dispatch delivery purge: %v", err)
	}
	if deliveries.olderThan != 36*time.Hour {
		t.Fatalf("expected 36h retention, got %s", deliveries.olderThan)
	}

	if err := dispatcher.Dispatch(ctx, &core.JobExecutionMessage{JobID: "crebain.unknown"}); err == nil {
		t.Fatalf("expected unknown job to fail")
	}
}

func TestMaintenanceDispatcher_DefaultRetention(t *testing.T) {
	deliveries := &stubDeliveryPurger{}
	dispatcher := &MaintenanceDispatcher{Deliveries: deliveries}

	msg := &core.JobExecutionMessage{JobID: JobIDDeliveryPurge}
	if err := dispatcher.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("dispatch without retention parameter: %v", err)
	}
	if deliveries.olderThan != 24*time.Hour {
		t.Fatalf("expected 24h default retention, got %s", deliveries.olderThan)
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          JobIDRateLimitSweep,
			IdempotencyKey: "idem-sweep",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Message == nil {
		t.Fatalf("expected worker message mapping")
	}
	if coreHook.last.Message.JobID != JobIDRateLimitSweep {
		t.Fatalf("expected job id mapping, got %q", coreHook.last.Message.JobID)
	}
	if coreHook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", coreHook.last.Attempt)
	}
	if coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", coreHook.last.Delay)
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type stubReplayPurger struct {
	called bool
	purged int
}

func (s *stubReplayPurger) PurgeExpired(context.Context) (int, error) {
	s.called = true
	return s.purged, nil
}

type stubDeliveryPurger struct {
	olderThan time.Duration
	purged    int
}

func (s *stubDeliveryPurger) PurgeProcessed(_ context.Context, olderThan time.Duration) (int, error) {
	s.olderThan = olderThan
	return s.purged, nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}
