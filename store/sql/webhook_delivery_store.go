package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crebain/webhooks"
)

// WebhookDeliveryStore is the durable delivery ledger. Claims are serialized
// through a unique index on delivery_id so two receivers racing on the same
// delivery resolve to exactly one handler run.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SetNow overrides the store clock for deterministic lease tests.
func (s *WebhookDeliveryStore) SetNow(now func() time.Time) {
	if s == nil || now == nil {
		return
	}
	s.now = now
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := s.currentTime()
	leaseUntil := now.Add(lease)

	record := &webhookDeliveryRecord{
		ID:            uuid.NewString(),
		DeliveryID:    deliveryID,
		Status:        webhooks.DeliveryStatusProcessing,
		Attempts:      1,
		NextAttemptAt: &leaseUntil,
		Payload:       append([]byte(nil), payload...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.reclaim(ctx, deliveryID, leaseUntil, now)
		}
		return webhooks.DeliveryRecord{}, false, err
	}
	return webhookDeliveryToDomain(record), true, nil
}

// reclaim handles the replayed-delivery path: a row already exists, so the
// claim only succeeds when the prior attempt's lease or retry schedule has
// elapsed.
func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	deliveryID string,
	leaseUntil time.Time,
	now time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	existing, err := s.Get(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	switch existing.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return existing, false, nil
	case webhooks.DeliveryStatusProcessing, webhooks.DeliveryStatusRetryReady:
		if existing.NextAttemptAt != nil && now.Before(existing.NextAttemptAt.UTC()) {
			return existing, false, nil
		}
	}

	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", leaseUntil).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// lost the race with a concurrent receiver
		current, getErr := s.Get(ctx, deliveryID)
		if getErr != nil {
			return webhooks.DeliveryRecord{}, false, getErr
		}
		return current, false, nil
	}
	claimed, err := s.Get(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return claimed, true, nil
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery %q not found", deliveryID)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID, attempt, err := splitClaimID(claimID)
	if err != nil {
		return err
	}
	_, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("last_error = ''").
		Set("updated_at = ?", s.currentTime()).
		Where("delivery_id = ?", deliveryID).
		Where("attempts = ?", attempt).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID, attempt, err := splitClaimID(claimID)
	if err != nil {
		return err
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	now := s.currentTime()

	status := webhooks.DeliveryStatusRetryReady
	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Where("delivery_id = ?", deliveryID).
		Where("attempts = ?", attempt).
		Where("status = ?", webhooks.DeliveryStatusProcessing)
	if attempt >= maxAttempts {
		status = webhooks.DeliveryStatusDead
		query = query.Set("next_attempt_at = NULL")
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		query = query.Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	query = query.
		Set("status = ?", status).
		Set("last_error = ?", causeMessage(cause)).
		Set("updated_at = ?", now)

	_, err = query.Exec(ctx)
	return err
}

// PurgeProcessed deletes processed deliveries older than the retention
// window and returns how many rows were removed.
func (s *WebhookDeliveryStore) PurgeProcessed(ctx context.Context, olderThan time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if olderThan <= 0 {
		olderThan = 24 * time.Hour
	}
	cutoff := s.currentTime().Add(-olderThan)
	result, err := s.db.NewDelete().
		Model((*webhookDeliveryRecord)(nil)).
		Where("status = ?", webhooks.DeliveryStatusProcessed).
		Where("updated_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (s *WebhookDeliveryStore) currentTime() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.DeliveryID + ":" + strconv.Itoa(record.Attempts),
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func splitClaimID(claimID string) (string, int, error) {
	parts := strings.Split(strings.TrimSpace(claimID), ":")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("sqlstore: invalid claim id %q", claimID)
	}
	attempt, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || attempt <= 0 {
		return "", 0, fmt.Errorf("sqlstore: invalid claim id %q", claimID)
	}
	return strings.Join(parts[:len(parts)-1], ":"), attempt, nil
}

func causeMessage(cause error) string {
	if cause == nil {
		return ""
	}
	return strings.TrimSpace(cause.Error())
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
