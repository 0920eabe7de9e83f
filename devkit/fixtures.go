package devkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crebain/webhooks"
)

// DeliveryLedgerFixture is an in-memory webhooks.DeliveryLedger with full
// claim lifecycle semantics: pending, processing, processed, retry_ready,
// dead.
type DeliveryLedgerFixture struct {
	mu      sync.Mutex
	records map[string]webhooks.DeliveryRecord
	now     func() time.Time
}

func NewDeliveryLedgerFixture() *DeliveryLedgerFixture {
	return &DeliveryLedgerFixture{
		records: map[string]webhooks.DeliveryRecord{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetNow overrides the fixture clock for deterministic retry tests.
func (l *DeliveryLedgerFixture) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *DeliveryLedgerFixture) Claim(
	_ context.Context,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.TrimSpace(deliveryID)
	if key == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("devkit: delivery id is required")
	}
	now := l.currentTime()
	if lease <= 0 {
		lease = 30 * time.Second
	}

	record, ok := l.records[key]
	if !ok {
		record = webhooks.DeliveryRecord{
			ID:         key,
			DeliveryID: key,
			Status:     webhooks.DeliveryStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	switch record.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		l.records[key] = record
		return record, false, nil
	case webhooks.DeliveryStatusRetryReady, webhooks.DeliveryStatusProcessing:
		if record.NextAttemptAt != nil && now.Before(record.NextAttemptAt.UTC()) {
			l.records[key] = record
			return record, false, nil
		}
	}

	record.Status = webhooks.DeliveryStatusProcessing
	record.Attempts++
	record.ClaimID = key + ":" + strconv.Itoa(record.Attempts)
	next := now.Add(lease)
	record.NextAttemptAt = &next
	record.UpdatedAt = now
	l.records[key] = record
	return record, true, nil
}

func (l *DeliveryLedgerFixture) Get(_ context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return webhooks.DeliveryRecord{}, fmt.Errorf("devkit: delivery not found")
	}
	return record, nil
}

func (l *DeliveryLedgerFixture) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, attempt, err := parseClaimID(claimID)
	if err != nil {
		return err
	}
	record, ok := l.records[key]
	if !ok {
		return fmt.Errorf("devkit: delivery not found")
	}
	if record.Status != webhooks.DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	record.Status = webhooks.DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.currentTime()
	l.records[key] = record
	return nil
}

func (l *DeliveryLedgerFixture) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, attempt, err := parseClaimID(claimID)
	if err != nil {
		return err
	}
	record, ok := l.records[key]
	if !ok {
		return fmt.Errorf("devkit: delivery not found")
	}
	if record.Status != webhooks.DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if record.Attempts >= maxAttempts {
		record.Status = webhooks.DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = webhooks.DeliveryStatusRetryReady
		if nextAttemptAt.IsZero() {
			nextAttemptAt = l.currentTime()
		}
		record.NextAttemptAt = &nextAttemptAt
	}
	record.UpdatedAt = l.currentTime()
	l.records[key] = record
	return nil
}

func (l *DeliveryLedgerFixture) Snapshot() []webhooks.DeliveryRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]webhooks.DeliveryRecord, 0, len(l.records))
	for _, record := range l.records {
		cloned := record
		if record.NextAttemptAt != nil {
			next := *record.NextAttemptAt
			cloned.NextAttemptAt = &next
		}
		out = append(out, cloned)
	}
	return out
}

func (l *DeliveryLedgerFixture) currentTime() time.Time {
	if l != nil && l.now != nil {
		return l.now().UTC()
	}
	return time.Now().UTC()
}

func parseClaimID(claimID string) (string, int, error) {
	parts := strings.Split(strings.TrimSpace(claimID), ":")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("devkit: invalid claim id")
	}
	attempt, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || attempt <= 0 {
		return "", 0, fmt.Errorf("devkit: invalid claim id")
	}
	key := strings.Join(parts[:len(parts)-1], ":")
	return key, attempt, nil
}

var _ webhooks.DeliveryLedger = (*DeliveryLedgerFixture)(nil)
