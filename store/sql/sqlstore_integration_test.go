package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-crebain/core"
	crebainmigrations "github.com/goliatone/go-crebain/migrations"
	"github.com/goliatone/go-crebain/ratelimit"
	sqlstore "github.com/goliatone/go-crebain/store/sql"
	"github.com/goliatone/go-crebain/webhooks"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-crebain-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:crebain-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = crebainmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != crebainmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, crebainmigrations.WithValidationTargets(crebainmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"crebain_webhook_deliveries",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "crebain_webhook_deliveries" {
		t.Fatalf("expected crebain_webhook_deliveries table, got %q", tableName)
	}
}

func TestWebhookDeliveryStore_ClaimDedupesReplays(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.WebhookDeliveryStore()
	if store == nil {
		t.Fatalf("expected webhook delivery store from factory")
	}

	first, claimed, err := store.Claim(ctx, "dlv_001", []byte(`{"event":"entity.updated"}`), time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to win")
	}
	if first.Status != webhooks.DeliveryStatusProcessing || first.Attempts != 1 {
		t.Fatalf("unexpected first claim state %q attempts=%d", first.Status, first.Attempts)
	}

	replay, claimed, err := store.Claim(ctx, "dlv_001", []byte(`{"event":"entity.updated"}`), time.Minute)
	if err != nil {
		t.Fatalf("replay claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected replay claim to be refused while the lease is held")
	}
	if replay.Attempts != 1 {
		t.Fatalf("expected replay to leave attempts at 1, got %d", replay.Attempts)
	}

	if err := store.Complete(ctx, first.ClaimID); err != nil {
		t.Fatalf("complete claim: %v", err)
	}
	processed, err := store.Get(ctx, "dlv_001")
	if err != nil {
		t.Fatalf("get processed delivery: %v", err)
	}
	if processed.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed status, got %q", processed.Status)
	}

	_, claimed, err = store.Claim(ctx, "dlv_001", nil, time.Minute)
	if err != nil {
		t.Fatalf("post-completion claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected processed delivery to stay deduped")
	}
}

func TestWebhookDeliveryStore_FailSchedulesRetryThenDead(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewWebhookDeliveryStore(client.DB())
	if err != nil {
		t.Fatalf("new webhook delivery store: %v", err)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })

	first, claimed, err := store.Claim(ctx, "dlv_retry", []byte(`{}`), time.Minute)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	retryAt := now.Add(5 * time.Second)
	if err := store.Fail(ctx, first.ClaimID, fmt.Errorf("downstream unavailable"), retryAt, 2); err != nil {
		t.Fatalf("fail claim: %v", err)
	}
	failed, err := store.Get(ctx, "dlv_retry")
	if err != nil {
		t.Fatalf("get failed delivery: %v", err)
	}
	if failed.Status != webhooks.DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %q", failed.Status)
	}
	if failed.NextAttemptAt == nil || !failed.NextAttemptAt.UTC().Equal(retryAt) {
		t.Fatalf("expected next attempt at %s, got %v", retryAt, failed.NextAttemptAt)
	}

	// before the retry window opens the delivery stays refused
	_, claimed, err = store.Claim(ctx, "dlv_retry", nil, time.Minute)
	if err != nil {
		t.Fatalf("early reclaim: %v", err)
	}
	if claimed {
		t.Fatalf("expected reclaim to wait for the retry window")
	}

	now = retryAt.Add(time.Second)
	second, claimed, err := store.Claim(ctx, "dlv_retry", nil, time.Minute)
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected retry claim to win after the window opened")
	}
	if second.Attempts != 2 {
		t.Fatalf("expected attempts=2 on retry, got %d", second.Attempts)
	}

	// attempts == maxAttempts, so this failure is terminal
	if err := store.Fail(ctx, second.ClaimID, fmt.Errorf("still failing"), now.Add(5*time.Second), 2); err != nil {
		t.Fatalf("terminal fail: %v", err)
	}
	dead, err := store.Get(ctx, "dlv_retry")
	if err != nil {
		t.Fatalf("get dead delivery: %v", err)
	}
	if dead.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected dead status, got %q", dead.Status)
	}
	if dead.NextAttemptAt != nil {
		t.Fatalf("expected dead delivery to drop its schedule")
	}

	_, claimed, err = store.Claim(ctx, "dlv_retry", nil, time.Minute)
	if err != nil {
		t.Fatalf("post-dead claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected dead delivery to stay refused")
	}
}

func TestWebhookDeliveryStore_PurgeProcessed(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewWebhookDeliveryStore(client.DB())
	if err != nil {
		t.Fatalf("new webhook delivery store: %v", err)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })

	old, claimed, err := store.Claim(ctx, "dlv_old", nil, time.Minute)
	if err != nil || !claimed {
		t.Fatalf("claim old delivery: claimed=%v err=%v", claimed, err)
	}
	if err := store.Complete(ctx, old.ClaimID); err != nil {
		t.Fatalf("complete old delivery: %v", err)
	}

	now = now.Add(48 * time.Hour)
	fresh, claimed, err := store.Claim(ctx, "dlv_fresh", nil, time.Minute)
	if err != nil || !claimed {
		t.Fatalf("claim fresh delivery: claimed=%v err=%v", claimed, err)
	}
	if err := store.Complete(ctx, fresh.ClaimID); err != nil {
		t.Fatalf("complete fresh delivery: %v", err)
	}

	purged, err := store.PurgeProcessed(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge processed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged delivery, got %d", purged)
	}
	if _, err := store.Get(ctx, "dlv_old"); err == nil {
		t.Fatalf("expected old delivery to be purged")
	}
	if _, err := store.Get(ctx, "dlv_fresh"); err != nil {
		t.Fatalf("expected fresh delivery to survive purge: %v", err)
	}
}

func TestRateLimitStateStore_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.RateLimitStateStore()
	if store == nil {
		t.Fatalf("expected rate-limit state store from factory")
	}

	key := core.RateLimitKey{APIKeyID: "CK_Test", BucketKey: "Entities"}
	if _, err := store.Get(ctx, key); err != ratelimit.ErrStateNotFound {
		t.Fatalf("expected ErrStateNotFound before upsert, got %v", err)
	}

	resetAt := time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)
	throttledUntil := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	retryAfter := 3 * time.Second
	state := ratelimit.State{
		Key:            key,
		Limit:          60,
		Remaining:      0,
		ResetAt:        &resetAt,
		RetryAfter:     &retryAfter,
		ThrottledUntil: &throttledUntil,
		LastStatus:     429,
		Attempts:       2,
		UpdatedAt:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Metadata:       map[string]any{"retry_after_source": "header"},
	}
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("upsert state: %v", err)
	}

	loaded, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if loaded.Key.APIKeyID != "ck_test" || loaded.Key.BucketKey != "entities" {
		t.Fatalf("expected normalized key, got %+v", loaded.Key)
	}
	if loaded.Limit != 60 || loaded.Remaining != 0 {
		t.Fatalf("unexpected limits %d/%d", loaded.Limit, loaded.Remaining)
	}
	if loaded.Attempts != 2 || loaded.LastStatus != 429 {
		t.Fatalf("expected throttle bookkeeping to round-trip, got attempts=%d status=%d", loaded.Attempts, loaded.LastStatus)
	}
	if loaded.ThrottledUntil == nil || !loaded.ThrottledUntil.Equal(throttledUntil) {
		t.Fatalf("expected throttled_until %s, got %v", throttledUntil, loaded.ThrottledUntil)
	}
	if loaded.RetryAfter == nil || *loaded.RetryAfter != retryAfter {
		t.Fatalf("expected retry-after %s, got %v", retryAfter, loaded.RetryAfter)
	}
	if loaded.Metadata["retry_after_source"] != "header" {
		t.Fatalf("expected metadata to round-trip, got %v", loaded.Metadata)
	}

	// second upsert updates in place rather than growing the table
	state.Remaining = 59
	state.Attempts = 0
	state.ThrottledUntil = nil
	state.UpdatedAt = state.UpdatedAt.Add(time.Minute)
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	var rows int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM crebain_rate_limit_states WHERE api_key_id = ? AND bucket_key = ?",
		"ck_test", "entities",
	).Scan(ctx, &rows); err != nil {
		t.Fatalf("count state rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single state row, got %d", rows)
	}
	updated, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get updated state: %v", err)
	}
	if updated.Remaining != 59 || updated.ThrottledUntil != nil || updated.Attempts != 0 {
		t.Fatalf("expected cleared throttle state, got %+v", updated)
	}
}

func TestAdaptivePolicy_BackedBySQLStore(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewRateLimitStateStore(client.DB())
	if err != nil {
		t.Fatalf("new rate-limit state store: %v", err)
	}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	policy := ratelimit.NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{APIKeyID: "ck_test", BucketKey: "entities"}
	res := ratelimit.NormalizeResponse(core.TransportResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "3"},
	})
	if err := policy.AfterCall(ctx, key, res); err != nil {
		t.Fatalf("record 429 against sql store: %v", err)
	}
	if err := policy.BeforeCall(ctx, key); err == nil {
		t.Fatalf("expected sql-backed policy to refuse while throttled")
	}

	now = now.Add(4 * time.Second)
	if err := policy.BeforeCall(ctx, key); err != nil {
		t.Fatalf("expected throttle to clear, got %v", err)
	}
}
